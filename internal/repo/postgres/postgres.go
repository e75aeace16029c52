package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens a pool through the pgx driver and pings it.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return NewWithDB(db, log), nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// per-kind column layout
var (
	detailCols = map[domain.Kind][]string{
		domain.KindTCP:  {"host", "port"},
		domain.KindDNS:  {"fqdn", "record_type", "resolver", "rcode", "answers"},
		domain.KindHTTP: {"url", "method", "status_code"},
	}
	groupCols = map[domain.Kind][]string{
		domain.KindTCP:  {"host", "port"},
		domain.KindDNS:  {"fqdn", "resolver"},
		domain.KindHTTP: {"url", "method"},
	}
	statCols = []string{"count", "success_count", "p50", "p95", "avg", "min", "max"}
)

func samplesTable(k domain.Kind) string    { return "samples_" + string(k) }
func aggregatesTable(k domain.Kind) string { return "aggregates_" + string(k) + "_1m" }

func checkKind(k domain.Kind) error {
	if _, ok := detailCols[k]; !ok {
		return fmt.Errorf("unknown kind %q", k)
	}
	return nil
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ",")
}

// ---- SampleStore ----

func (s *Store) InsertSample(ctx context.Context, smp domain.Sample) error {
	if err := smp.Validate(); err != nil {
		return err
	}
	cols := append([]string{"ts", "target_id", "latency_ms", "success", "error"}, detailCols[smp.Kind]...)
	args := []any{
		smp.Timestamp.UTC(),
		null.NewString(smp.TargetID, smp.TargetID != ""),
		smp.LatencyMS,
		smp.Success,
		null.NewString(smp.Error, smp.Error != ""),
	}
	switch smp.Kind {
	case domain.KindTCP:
		args = append(args, smp.TCP.Host, smp.TCP.Port)
	case domain.KindDNS:
		answers, err := json.Marshal(smp.DNS.Answers)
		if err != nil {
			return fmt.Errorf("encode answers: %w", err)
		}
		args = append(args,
			smp.DNS.FQDN, smp.DNS.RecordType, smp.DNS.Resolver,
			null.NewString(smp.DNS.Rcode, smp.DNS.Rcode != ""), string(answers))
	case domain.KindHTTP:
		code := int64(smp.HTTP.StatusCode)
		args = append(args, smp.HTTP.URL, smp.HTTP.Method, null.NewInt(code, code != 0))
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		samplesTable(smp.Kind), strings.Join(cols, ", "), placeholders(1, len(args)))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert %s sample: %w", smp.Kind, err)
	}
	return nil
}

func (s *Store) FetchSamples(ctx context.Context, kind domain.Kind, start, end time.Time, f repo.Filter) ([]domain.Sample, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	cols := append([]string{"ts", "target_id", "latency_ms", "success", "error"}, detailCols[kind]...)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE ts >= $1", strings.Join(cols, ", "), samplesTable(kind))
	args := []any{start.UTC()}
	if !end.IsZero() {
		args = append(args, end.UTC())
		q += fmt.Sprintf(" AND ts < $%d", len(args))
	}
	if f.TargetID != "" {
		args = append(args, f.TargetID)
		q += fmt.Sprintf(" AND target_id = $%d", len(args))
	}
	q += " ORDER BY ts, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s samples: %w", kind, err)
	}
	defer rows.Close()

	out := make([]domain.Sample, 0)
	for rows.Next() {
		smp, err := scanSample(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s sample: %w", kind, err)
		}
		if f.Match(smp) {
			out = append(out, smp)
		}
	}
	return out, rows.Err()
}

func scanSample(kind domain.Kind, rows *sql.Rows) (domain.Sample, error) {
	var (
		smp      = domain.Sample{Kind: kind}
		targetID null.String
		errText  null.String
	)
	dest := []any{&smp.Timestamp, &targetID, &smp.LatencyMS, &smp.Success, &errText}

	var (
		tcp     domain.TCPDetail
		dns     domain.DNSDetail
		http    domain.HTTPDetail
		rcode   null.String
		answers null.String
		status  null.Int
	)
	switch kind {
	case domain.KindTCP:
		dest = append(dest, &tcp.Host, &tcp.Port)
	case domain.KindDNS:
		dest = append(dest, &dns.FQDN, &dns.RecordType, &dns.Resolver, &rcode, &answers)
	case domain.KindHTTP:
		dest = append(dest, &http.URL, &http.Method, &status)
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.Sample{}, err
	}

	smp.Timestamp = smp.Timestamp.UTC()
	smp.TargetID = targetID.String
	smp.Error = errText.String
	switch kind {
	case domain.KindTCP:
		smp.TCP = &tcp
	case domain.KindDNS:
		dns.Rcode = rcode.String
		dns.Answers = []string{}
		if answers.Valid && answers.String != "" {
			if err := json.Unmarshal([]byte(answers.String), &dns.Answers); err != nil {
				return domain.Sample{}, fmt.Errorf("decode answers: %w", err)
			}
		}
		smp.DNS = &dns
	case domain.KindHTTP:
		http.StatusCode = int(status.Int64)
		smp.HTTP = &http
	}
	return smp, nil
}

func (s *Store) DeleteSamplesOlderThan(ctx context.Context, kind domain.Kind, cutoff time.Time) (int64, error) {
	if err := checkKind(kind); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE ts < $1", samplesTable(kind)), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune %s samples: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune %s rows affected: %w", kind, err)
	}
	return n, nil
}

// ---- AggregateStore ----

func groupArgs(kind domain.Kind, g domain.GroupKey) []any {
	switch kind {
	case domain.KindTCP:
		return []any{g.Host, g.Port}
	case domain.KindDNS:
		return []any{g.FQDN, g.Resolver}
	default:
		return []any{g.URL, g.Method}
	}
}

func upsertQuery(kind domain.Kind) string {
	keys := append([]string{"bucket"}, groupCols[kind]...)
	cols := append(append([]string{}, keys...), statCols...)
	sets := make([]string, len(statCols))
	for i, c := range statCols {
		sets[i] = fmt.Sprintf("%s=EXCLUDED.%s", c, c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		aggregatesTable(kind),
		strings.Join(cols, ", "),
		placeholders(1, len(cols)),
		strings.Join(keys, ", "),
		strings.Join(sets, ", "),
	)
}

// UpsertAggregates writes all rows in one transaction.
func (s *Store) UpsertAggregates(ctx context.Context, kind domain.Kind, rows []domain.AggregateRow) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	q := upsertQuery(kind)
	for _, r := range rows {
		args := append([]any{r.Bucket.UTC()}, groupArgs(kind, r.Key)...)
		args = append(args, r.Count, r.SuccessCount, r.P50, r.P95, r.Avg, r.Min, r.Max)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s aggregate: %w", kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *Store) ListAggregates(ctx context.Context, kind domain.Kind, start, end time.Time, f repo.Filter) ([]domain.AggregateRow, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	keys := groupCols[kind]
	cols := append(append([]string{"bucket"}, keys...), statCols...)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE bucket >= $1", strings.Join(cols, ", "), aggregatesTable(kind))
	args := []any{start.UTC()}
	if !end.IsZero() {
		args = append(args, end.UTC())
		q += fmt.Sprintf(" AND bucket < $%d", len(args))
	}
	q += " ORDER BY bucket, " + strings.Join(keys, ", ")

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s aggregates: %w", kind, err)
	}
	defer rows.Close()

	out := make([]domain.AggregateRow, 0)
	for rows.Next() {
		r := domain.AggregateRow{Kind: kind}
		dest := []any{&r.Bucket}
		switch kind {
		case domain.KindTCP:
			dest = append(dest, &r.Key.Host, &r.Key.Port)
		case domain.KindDNS:
			dest = append(dest, &r.Key.FQDN, &r.Key.Resolver)
		case domain.KindHTTP:
			dest = append(dest, &r.Key.URL, &r.Key.Method)
		}
		dest = append(dest, &r.Count, &r.SuccessCount, &r.P50, &r.P95, &r.Avg, &r.Min, &r.Max)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s aggregate: %w", kind, err)
		}
		r.Bucket = r.Bucket.UTC()
		if f.MatchGroup(r.Key) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}
