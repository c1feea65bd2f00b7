package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// AnalystConfig holds configuration for the audit analyst.
type AnalystConfig struct {
	// ClickHouse connection settings.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	LLM    llms.Model
	Logger *logrus.Logger
}

// Analyst answers questions about gateway traffic with NL→SQL over the
// audit tables.
type Analyst struct {
	llm    llms.Model
	db     *sql.DB
	logger *logrus.Logger
}

// NewAnalyst opens its own ClickHouse connection.
func NewAnalyst(ctx context.Context, cfg AnalystConfig) (*Analyst, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.LLM == nil {
		return nil, errors.New("analyst needs an LLM")
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
	})

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse from analyst: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.ClickHouseAddr,
		"database": cfg.ClickHouseDatabase,
	}).Info("initialized audit analyst")

	return &Analyst{llm: cfg.LLM, db: db, logger: cfg.Logger}, nil
}

// Close closes underlying resources.
func (a *Analyst) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// AskResult is the structured result of an Ask call.
type AskResult struct {
	SQL    string
	Answer string
}

// Ask generates SQL for question, runs it, and summarises the rows.
func (a *Analyst) Ask(ctx context.Context, question string) (*AskResult, error) {
	sqlQuery, err := a.generateSQL(ctx, question)
	if err != nil {
		return nil, err
	}

	rowsJSON, err := a.runQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	answer, err := a.summarise(ctx, question, sqlQuery, rowsJSON)
	if err != nil {
		return nil, err
	}

	return &AskResult{SQL: sqlQuery, Answer: answer}, nil
}

func (a *Analyst) generateSQL(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`
You are an expert ClickHouse SQL generator.

Use ONLY the following tables:
%s

Rules:
- Return a single SELECT query in ClickHouse SQL.
- Do NOT include any explanation or comments, only the SQL.
- Use timestamp for time filtering.
- If the user asks for "top" or "most" of something, use ORDER BY ... DESC and LIMIT.
- Never modify data: no INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, TRUNCATE.
- Read only from quote_events and build_events, written exactly like that
  (no database prefix, no quotes, no table functions, no system tables).

User question:
%s
`, auditSchemaDescription, question)

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(512))
	if err != nil {
		return "", fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	sqlQuery := sanitizeSQL(resp)
	if err := validateSQL(sqlQuery); err != nil {
		return "", err
	}

	a.logger.WithField("sql", sqlQuery).Debug("generated SQL from question")
	return sqlQuery, nil
}

func (a *Analyst) runQuery(ctx context.Context, sqlQuery string) (string, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return "", fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to get columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration error: %w", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}
	return string(data), nil
}

func (a *Analyst) summarise(ctx context.Context, question, sqlQuery, rowsJSON string) (string, error) {
	prompt := fmt.Sprintf(`
You are a helpful assistant reporting on a Solana swap instruction gateway.

User question:
%s

SQL that was executed:
%s

Query results in JSON (array of objects, can be empty):
%s

Instructions:
- If the result set is empty, say that no data was found for the question.
- Otherwise, answer concisely using bullet points and short sentences.
- Include key numbers (counts, amounts, latencies).
- Do not restate the raw JSON.
`, question, sqlQuery, rowsJSON)

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(512))
	if err != nil {
		return "", fmt.Errorf("LLM summarisation failed: %w", err)
	}
	return strings.TrimSpace(resp), nil
}

// sanitizeSQL strips code fences and trailing semicolons from LLM output.
func sanitizeSQL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "sql") {
		s = strings.TrimSpace(s[3:])
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

var auditTables = map[string]bool{"QUOTE_EVENTS": true, "BUILD_EVENTS": true}

var (
	disallowedKeyword = regexp.MustCompile(`\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|RENAME|ATTACH|DETACH|SYSTEM|GRANT|REVOKE|KILL|OPTIMIZE|SET|INTO|OUTFILE|EXCHANGE|INFORMATION_SCHEMA)\b`)
	cteName           = regexp.MustCompile(`\b([A-Z_][A-Z0-9_]*)\s+AS\s*\(`)
	tableRef          = regexp.MustCompile(`\b(?:FROM|JOIN)\b\s*([^\s,]+)`)
	plainIdent        = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
	tableFunction     = regexp.MustCompile(`\b(FILE|FILECLUSTER|URL|URLCLUSTER|REMOTE|REMOTESECURE|CLUSTER|CLUSTERALLREPLICAS|S3|S3CLUSTER|GCS|HDFS|AZUREBLOBSTORAGE|MYSQL|POSTGRESQL|SQLITE|MONGODB|REDIS|JDBC|ODBC|EXECUTABLE|INPUT|DICTIONARY|MERGE|ICEBERG|DELTALAKE|HUDI)\s*\(`)
)

// validateSQL enforces a read-only policy on generated SQL: one SELECT (or
// WITH ... SELECT) statement whose FROM and JOIN targets are the audit
// tables, subqueries, or CTEs defined in the same query. Qualified names,
// quoted identifiers and table functions such as file() or url() are
// rejected.
func validateSQL(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("empty SQL generated by LLM")
	}

	code, err := stripLiterals(s)
	if err != nil {
		return err
	}
	upper := strings.ToUpper(strings.TrimSpace(code))

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT queries are allowed, got: %s", upper[:min(20, len(upper))])
	}
	if strings.Contains(upper, ";") {
		return errors.New("multiple statements or semicolons are not allowed")
	}
	if kw := disallowedKeyword.FindString(upper); kw != "" {
		return fmt.Errorf("disallowed SQL keyword %q in generated query", kw)
	}

	if fn := tableFunction.FindStringSubmatch(upper); fn != nil {
		return fmt.Errorf("table function %s() is not allowed", strings.ToLower(fn[1]))
	}

	ctes := map[string]bool{}
	for _, m := range cteName.FindAllStringSubmatch(upper, -1) {
		ctes[m[1]] = true
	}

	audited := false
	for _, m := range tableRef.FindAllStringSubmatch(upper, -1) {
		target := m[1]
		if strings.HasPrefix(target, "(") {
			continue
		}
		target = strings.TrimRight(target, ")")
		if !plainIdent.MatchString(target) {
			return fmt.Errorf("query may only read quote_events or build_events, got %q", strings.ToLower(target))
		}
		switch {
		case auditTables[target]:
			audited = true
		case ctes[target]:
		default:
			return fmt.Errorf("query may only read quote_events or build_events, got %q", strings.ToLower(target))
		}
	}
	if !audited {
		return errors.New("query must target quote_events or build_events")
	}
	return nil
}

// stripLiterals blanks out string literals and removes comments so the
// policy checks only see SQL code. Quoted identifiers are kept verbatim.
func stripLiterals(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(s, i)
			if end < 0 {
				return "", fmt.Errorf("unterminated quote %q", c)
			}
			if c == '\'' {
				b.WriteString("''")
			} else {
				b.WriteString(s[i : end+1])
			}
			i = end + 1
		case strings.HasPrefix(s[i:], "--") || strings.HasPrefix(s[i:], "# ") || strings.HasPrefix(s[i:], "#!"):
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return b.String(), nil
			}
			b.WriteByte(' ')
			i += end
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return "", errors.New("unterminated comment")
			}
			b.WriteByte(' ')
			i += end + 4
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// closingQuote returns the index of the quote closing the one at start, or
// -1. Backslash escapes and doubled quotes stay inside.
func closingQuote(s string, start int) int {
	q := s[start]
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j
		}
	}
	return -1
}
