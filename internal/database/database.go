package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bot-alertas/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sqlx.DB
}

type watchRow struct {
	ID                   int64           `db:"id"`
	ChatID               string          `db:"chat_id"`
	ReminderID           string          `db:"reminder_id"`
	URL                  string          `db:"url"`
	MaxPrice             decimal.Decimal `db:"max_price"`
	Condition            string          `db:"condition"`
	MinBattery           int             `db:"min_battery"`
	FrequencyHours       sql.NullInt64   `db:"frequency_hours"`
	CheckIntervalSeconds sql.NullInt64   `db:"check_interval_seconds"`
	LastChecked          int64           `db:"last_checked"`
	DisplayName          sql.NullString  `db:"display_name"`
}

const selectColumns = `SELECT id, chat_id, reminder_id, url, max_price, condition, min_battery,
	frequency_hours, check_interval_seconds, last_checked, display_name FROM reminders`

// DriverFor escolhe o driver a partir da string de conexão
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite3"
}

// New cria uma nova instância do banco de dados e aplica as migrações
func New(dsn string) (*DB, error) {
	driver := DriverFor(dsn)
	if driver == "sqlite3" {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// sqlite não lida bem com escritas concorrentes em conexões diferentes
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewWithConn usa uma conexão já aberta, sem migrações
func NewWithConn(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.conn.DriverName() == "postgres" {
		idColumn = "SERIAL PRIMARY KEY"
	}

	createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS reminders (
		id %s,
		chat_id VARCHAR(255) NOT NULL,
		reminder_id VARCHAR(255) UNIQUE NOT NULL,
		url TEXT NOT NULL,
		max_price NUMERIC NOT NULL,
		condition VARCHAR(255) NOT NULL,
		min_battery INTEGER NOT NULL,
		frequency_hours INTEGER NOT NULL,
		last_checked BIGINT NOT NULL
	);
	`, idColumn)

	if _, err := db.conn.Exec(createTableSQL); err != nil {
		return fmt.Errorf("erro ao criar tabela reminders: %w", err)
	}

	// Colunas adicionadas depois da primeira versão. SQLite não suporta
	// IF NOT EXISTS em ALTER TABLE, então ignoramos o erro de coluna duplicada.
	_, _ = db.conn.Exec("ALTER TABLE reminders ADD COLUMN check_interval_seconds BIGINT")
	_, _ = db.conn.Exec("ALTER TABLE reminders ADD COLUMN display_name TEXT")

	if _, err := db.conn.Exec("CREATE INDEX IF NOT EXISTS idx_reminders_chat_id ON reminders (chat_id)"); err != nil {
		return fmt.Errorf("erro ao criar índice: %w", err)
	}
	return nil
}

// InsertWatch adiciona um novo alerta e preenche o ID gerado
func (db *DB) InsertWatch(ctx context.Context, w *models.Watch) error {
	query := db.conn.Rebind(`INSERT INTO reminders
		(chat_id, reminder_id, url, max_price, condition, min_battery, frequency_hours, check_interval_seconds, last_checked, display_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var displayName sql.NullString
	if w.Criteria.DisplayName != "" {
		displayName = sql.NullString{String: w.Criteria.DisplayName, Valid: true}
	}

	err := db.conn.QueryRowxContext(ctx, query,
		w.OwnerChatID,
		w.ExternalID,
		w.Criteria.TargetURL,
		w.Criteria.MaxPrice,
		w.Criteria.DesiredCondition,
		w.Criteria.MinBatteryPercent,
		legacyHours(w.CheckIntervalSeconds),
		w.CheckIntervalSeconds,
		w.LastCheckedAt,
		displayName,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("erro ao inserir alerta: %w", err)
	}
	return nil
}

// ListWatches retorna todos os alertas na ordem de criação
func (db *DB) ListWatches(ctx context.Context) ([]models.Watch, error) {
	var rows []watchRow
	if err := db.conn.SelectContext(ctx, &rows, selectColumns+" ORDER BY id"); err != nil {
		return nil, fmt.Errorf("erro ao listar alertas: %w", err)
	}
	return toWatches(rows), nil
}

// ListWatchesByOwner retorna os alertas de um chat
func (db *DB) ListWatchesByOwner(ctx context.Context, chatID string) ([]models.Watch, error) {
	var rows []watchRow
	query := db.conn.Rebind(selectColumns + " WHERE chat_id = ? ORDER BY id")
	if err := db.conn.SelectContext(ctx, &rows, query, chatID); err != nil {
		return nil, fmt.Errorf("erro ao listar alertas do chat: %w", err)
	}
	return toWatches(rows), nil
}

// DeleteWatch remove um alerta pelo identificador externo, apenas se pertencer ao chat.
// Retorna o número de linhas afetadas.
func (db *DB) DeleteWatch(ctx context.Context, externalID, chatID string) (int64, error) {
	query := db.conn.Rebind("DELETE FROM reminders WHERE reminder_id = ? AND chat_id = ?")
	res, err := db.conn.ExecContext(ctx, query, externalID, chatID)
	if err != nil {
		return 0, fmt.Errorf("erro ao remover alerta: %w", err)
	}
	return res.RowsAffected()
}

// UpdateLastChecked registra a última verificação. O valor nunca retrocede.
func (db *DB) UpdateLastChecked(ctx context.Context, id int64, checkedAt int64) error {
	query := db.conn.Rebind("UPDATE reminders SET last_checked = ? WHERE id = ? AND last_checked <= ?")
	if _, err := db.conn.ExecContext(ctx, query, checkedAt, id, checkedAt); err != nil {
		return fmt.Errorf("erro ao atualizar última verificação: %w", err)
	}
	return nil
}

// legacyHours mantém a coluna antiga preenchida para leitores anteriores
func legacyHours(seconds int64) int64 {
	hours := (seconds + 3599) / 3600
	if hours < 1 {
		return 1
	}
	return hours
}

func toWatches(rows []watchRow) []models.Watch {
	watches := make([]models.Watch, 0, len(rows))
	for _, r := range rows {
		watches = append(watches, r.toWatch())
	}
	return watches
}

func (r watchRow) toWatch() models.Watch {
	interval := r.CheckIntervalSeconds.Int64
	if !r.CheckIntervalSeconds.Valid || interval <= 0 {
		// linhas antigas só têm frequency_hours
		interval = r.FrequencyHours.Int64 * 3600
	}
	return models.Watch{
		ID:          r.ID,
		ExternalID:  r.ReminderID,
		OwnerChatID: r.ChatID,
		Criteria: models.WatchCriteria{
			TargetURL:         r.URL,
			MaxPrice:          r.MaxPrice,
			DesiredCondition:  r.Condition,
			MinBatteryPercent: r.MinBattery,
			DisplayName:       r.DisplayName.String,
		},
		CheckIntervalSeconds: interval,
		LastCheckedAt:        r.LastChecked,
	}
}
