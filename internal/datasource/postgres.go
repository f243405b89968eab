package datasource

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"cleanroom/internal/models"
)

// Config holds connection details for a database source.
type Config struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// Source loads database tables as Datasets so they flow through the same
// pipeline as uploaded files.
type Source interface {
	Connect(config Config) error
	Close() error
	ListTables() ([]string, error)
	LoadTable(tableName string, limit int) (*models.Dataset, error)
}

// PostgresSource implements Source for PostgreSQL.
type PostgresSource struct {
	db *sql.DB
}

func (p *PostgresSource) Connect(config Config) error {
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	p.db = db
	return nil
}

func (p *PostgresSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresSource) ListTables() ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	rows, err := p.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// LoadTable reads up to limit rows of a table into a Dataset. The table
// name is checked against the catalog before being interpolated.
func (p *PostgresSource) LoadTable(tableName string, limit int) (*models.Dataset, error) {
	tables, err := p.ListTables()
	if err != nil {
		return nil, err
	}
	known := false
	for _, t := range tables {
		if t == tableName {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown table %q", tableName)
	}
	if limit <= 0 {
		limit = 1000
	}

	rows, err := p.db.Query(fmt.Sprintf(`SELECT * FROM %q LIMIT %d`, tableName, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	ds := &models.Dataset{
		Name:        tableName,
		SourceFile:  tableName,
		Headers:     columns,
		ColumnTypes: make(map[string]string, len(columns)),
	}
	for i, col := range columns {
		ds.ColumnTypes[col] = sqlTypeLabel(types[i].DatabaseTypeName())
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(columns))
		for i, val := range values {
			switch v := val.(type) {
			case nil:
				row[i] = ""
			case []byte:
				row[i] = string(v)
			default:
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, rows.Err()
}

func sqlTypeLabel(dbType string) string {
	switch dbType {
	case "INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return models.TypeInt
	case "FLOAT4", "FLOAT8", "NUMERIC", "DECIMAL":
		return models.TypeFloat
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ":
		return models.TypeDate
	default:
		return models.TypeString
	}
}
