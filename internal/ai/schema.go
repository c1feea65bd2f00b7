package ai

// auditSchemaDescription describes the ClickHouse audit tables for NL→SQL
// prompting. It must match the DDL in internal/cache/clickhouse.go.
const auditSchemaDescription = `
Table: quote_events  -- one row per computed quote

Columns:
  - id          UUID
  - timestamp   DateTime64(3)  -- UTC
  - source      String         -- "http", "tool" or "cli"
  - pool        String         -- pool address for live-pool quotes, empty otherwise
  - amount_in   String         -- decimal integer in base units
  - reserve_in  String
  - reserve_out String
  - fee_bps     Int64
  - amount_out  String

Table: build_events  -- one row per swap instruction build attempt

Columns:
  - id             UUID
  - timestamp      DateTime64(3)
  - source         String
  - program_id     String
  - pool           String
  - user           String       -- base58 wallet address
  - amount_in      String
  - min_amount_out String
  - verified       Bool         -- on-chain token accounts were checked
  - outcome        String       -- "ok" or an error kind such as "InvalidAmount", "AccountNotFound"
  - field          String       -- request field the failure is attributed to
  - duration_ms    Int64

Notes:
  - Amounts are strings; use toUInt256OrZero(amount_in) for arithmetic.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
  - Failed builds have outcome != 'ok'.
`
