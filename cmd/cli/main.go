package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const usage = `usage: netprobe-cli <command> [flags]

commands:
  state                          show the probe configuration
  add tcp  -id ID -host H [-port P] [-interval S]
  add dns  -id ID -fqdn F [-type T] [-resolvers a,b] [-interval S]
  add http -id ID -url U [-method M] [-interval S]
  remove <tcp|dns|http> <id>
  ping -host H [-port P]         one-off TCP probe
  recent [-limit N]              recent samples
  tail                           follow the live event stream

env: API_BASE (default http://localhost:8080), API_KEY`

type client struct {
	base string
	key  string
	http *http.Client
}

func main() {
	c := &client{
		base: strings.TrimRight(envOr("API_BASE", "http://localhost:8080"), "/"),
		key:  os.Getenv("API_KEY"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	if err := run(c, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func run(c *client, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, usage)
		return nil
	}
	switch args[0] {
	case "state":
		return c.call(http.MethodGet, "/api/config/state", nil, out)
	case "add":
		return runAdd(c, args[1:], out)
	case "remove":
		if len(args) != 3 {
			return errors.New("remove needs <kind> <id>")
		}
		return c.call(http.MethodDelete, "/api/config/"+url.PathEscape(args[1])+"/"+url.PathEscape(args[2]), nil, out)
	case "ping":
		fs := flag.NewFlagSet("ping", flag.ContinueOnError)
		host := fs.String("host", "", "host or IP")
		port := fs.Int("port", 443, "port")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *host == "" {
			return errors.New("-host is required")
		}
		return c.call(http.MethodPost, "/api/ping/tcp", map[string]any{"host": *host, "port": *port}, out)
	case "recent":
		fs := flag.NewFlagSet("recent", flag.ContinueOnError)
		limit := fs.Int("limit", 20, "number of samples")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return c.call(http.MethodGet, fmt.Sprintf("/api/metrics/recent?limit=%d", *limit), nil, out)
	case "tail":
		return c.tail(out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runAdd(c *client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("add needs a kind: tcp, dns or http")
	}
	kind := args[0]
	fs := flag.NewFlagSet("add "+kind, flag.ContinueOnError)
	id := fs.String("id", "", "target id")
	interval := fs.Float64("interval", 0, "probe interval in seconds (server default when 0)")
	body := map[string]any{}

	var host, fqdn, rtype, resolvers, target, method *string
	var port *int
	switch kind {
	case "tcp":
		host = fs.String("host", "", "host or IP")
		port = fs.Int("port", 443, "port")
	case "dns":
		fqdn = fs.String("fqdn", "", "name to resolve")
		rtype = fs.String("type", "A", "record type")
		resolvers = fs.String("resolvers", "", "comma-separated resolver IPs")
	case "http":
		target = fs.String("url", "", "http(s) URL")
		method = fs.String("method", "GET", "request method")
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	body["id"] = *id
	if *interval > 0 {
		body["interval_sec"] = *interval
	}
	switch kind {
	case "tcp":
		body["host"], body["port"] = *host, *port
	case "dns":
		body["fqdn"], body["record_type"] = *fqdn, *rtype
		if *resolvers != "" {
			body["resolvers"] = strings.Split(*resolvers, ",")
		}
	case "http":
		body["url"], body["method"] = *target, *method
	}
	return c.call(http.MethodPost, "/api/config/"+kind, body, out)
}

func (c *client) call(method, path string, payload any, out io.Writer) error {
	var rd io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	fmt.Fprintln(out, string(raw))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API returned status: %s", resp.Status)
	}
	return nil
}

// tail prints one JSON event per line until the stream ends.
func (c *client) tail(out io.Writer) error {
	req, err := http.NewRequest(http.MethodGet, c.base+"/api/stream/events", nil)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	// no client timeout on a stream
	resp, err := (&http.Client{Transport: c.http.Transport}).Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status: %s", resp.Status)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			fmt.Fprintln(out, data)
		}
	}
	return sc.Err()
}
