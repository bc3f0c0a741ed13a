// Файл: internal/db/db.go
package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var DB *sql.DB // Глобальная переменная для хранения подключения к БД

// InitDB инициализирует соединение с базой данных и выполняет миграции.
func InitDB() error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL не установлена")
	}

	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	DB.SetMaxOpenConns(50)
	DB.SetMaxIdleConns(20)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("ошибка проверки соединения с базой данных: %v", err)
	}

	log.Println("Успешное подключение к базе данных.")

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции для создания таблиц: %v", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			log.Printf("Откат транзакции из-за ошибки: %v", err)
			tx.Rollback()
		}
	}()

	createTablesSQL := `
        CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            chat_id BIGINT UNIQUE,
            role TEXT DEFAULT 'user',
            first_name VARCHAR(100),
            last_name VARCHAR(100),
            phone VARCHAR(20),
            payout_destination TEXT,
            is_blocked BOOLEAN DEFAULT FALSE,
            block_reason TEXT,
            created_at TIMESTAMP,
            updated_at TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS jobs (
            id SERIAL PRIMARY KEY,
            poster_id INTEGER REFERENCES users(id) NOT NULL,
            assigned_helper_id INTEGER REFERENCES users(id),
            accepted_counter_offer_id INTEGER,
            title TEXT,
            description TEXT,
            price FLOAT NOT NULL,
            final_price FLOAT,
            payment_type TEXT CHECK (payment_type IN ('fixed', 'hourly')),
            hourly_rate FLOAT DEFAULT 0,
            start_time TIMESTAMP,
            end_time TIMESTAMP,
            actual_start_time TIMESTAMP,
            actual_end_time TIMESTAMP,
            actual_hours FLOAT,
            extra_time_requested FLOAT,
            extra_time_approved BOOLEAN DEFAULT FALSE,
            total_approved_hours FLOAT DEFAULT 0,
            payment_intent_id TEXT,
            status TEXT NOT NULL,
            active BOOLEAN DEFAULT TRUE,
            created_at TIMESTAMP,
            updated_at TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS counter_offers (
            id SERIAL PRIMARY KEY,
            job_id INTEGER REFERENCES jobs(id) ON DELETE CASCADE NOT NULL,
            helper_id INTEGER REFERENCES users(id) NOT NULL,
            amount FLOAT NOT NULL,
            payment_type TEXT CHECK (payment_type IN ('fixed', 'hourly')),
            note TEXT,
            created_at TIMESTAMP DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS job_timelines (
            job_id INTEGER REFERENCES jobs(id) ON DELETE CASCADE PRIMARY KEY,
            posted_at TIMESTAMP,
            counter_offer_at TIMESTAMP,
            confirmed_at TIMESTAMP,
            ongoing_at TIMESTAMP,
            completed_at TIMESTAMP,
            paid_at TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS payment_transactions (
            id SERIAL PRIMARY KEY,
            job_id INTEGER REFERENCES jobs(id) NOT NULL,
            user_id INTEGER REFERENCES users(id),
            type TEXT NOT NULL,
            amount FLOAT NOT NULL,
            status TEXT NOT NULL,
            reference_number TEXT,
            created_at TIMESTAMP DEFAULT NOW()
        );
    `
	_, err = tx.Exec(createTablesSQL)
	if err != nil {
		return fmt.Errorf("ошибка создания таблиц: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("ошибка фиксации транзакции создания таблиц: %v", err)
	}
	log.Println("Создание таблиц (если не существуют) завершено.")

	err = migrateDBSchema()
	if err != nil {
		return fmt.Errorf("ошибка выполнения миграции схемы: %v", err)
	}

	createIndexesSQL := `
        CREATE INDEX IF NOT EXISTS idx_users_chat_id ON users(chat_id);
        CREATE INDEX IF NOT EXISTS idx_jobs_poster_id_status ON jobs(poster_id, status);
        CREATE INDEX IF NOT EXISTS idx_jobs_helper_id_status ON jobs(assigned_helper_id, status);
        CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
        CREATE INDEX IF NOT EXISTS idx_counter_offers_job_id ON counter_offers(job_id);
        CREATE INDEX IF NOT EXISTS idx_counter_offers_helper_id ON counter_offers(helper_id);
        CREATE INDEX IF NOT EXISTS idx_job_timelines_completed_paid ON job_timelines(completed_at) WHERE paid_at IS NULL;
        CREATE INDEX IF NOT EXISTS idx_payment_transactions_job_id ON payment_transactions(job_id);
        CREATE INDEX IF NOT EXISTS idx_payment_transactions_user_id ON payment_transactions(user_id);
    `
	indexStatements := strings.Split(strings.TrimSpace(createIndexesSQL), ";")
	for _, stmt := range indexStatements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		_, errIdx := DB.Exec(trimmedStmt)
		if errIdx != nil {
			log.Printf("Предупреждение: ошибка при создании индекса ('%s'): %v.", trimmedStmt, errIdx)
		}
	}
	log.Println("Создание индексов (если не существуют) завершено.")

	log.Println("Инициализация базы данных успешно завершена.")
	return nil
}

// migrateDBSchema выполняет необходимые миграции схемы базы данных.
// This function should be idempotent.
func migrateDBSchema() error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "jobs.extra_time_columns",
			sql: `ALTER TABLE jobs
                  ADD COLUMN IF NOT EXISTS extra_time_requested FLOAT,
                  ADD COLUMN IF NOT EXISTS extra_time_approved BOOLEAN DEFAULT FALSE,
                  ADD COLUMN IF NOT EXISTS total_approved_hours FLOAT DEFAULT 0;`,
		},
		{
			name: "jobs.payment_intent_id",
			sql:  `ALTER TABLE jobs ADD COLUMN IF NOT EXISTS payment_intent_id TEXT;`,
		},
		{
			name: "users.payout_destination",
			sql:  `ALTER TABLE users ADD COLUMN IF NOT EXISTS payout_destination TEXT;`,
		},
		{
			name: "jobs.accepted_counter_offer_fk",
			sql: `DO $$
                  BEGIN
                      IF NOT EXISTS (
                          SELECT 1 FROM pg_constraint
                          WHERE conrelid = 'jobs'::regclass
                          AND conname = 'jobs_accepted_counter_offer_id_key'
                      ) THEN
                          ALTER TABLE jobs ADD CONSTRAINT jobs_accepted_counter_offer_id_key UNIQUE (accepted_counter_offer_id);
                      END IF;
                  END$$;`,
		},
	}

	for _, migration := range migrations {
		_, err := DB.Exec(migration.sql)
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				log.Printf("INFO: Миграция '%s' пропущена (объект уже существует). Детали: %v", migration.name, err)
			} else {
				return fmt.Errorf("ошибка миграции схемы ('%s'): %v", migration.name, err)
			}
		}
	}

	log.Println("Миграция схемы базы данных успешно выполнена (или не требовалась).")
	return nil
}

// CloseDB закрывает соединение с базой данных.
func CloseDB() {
	if DB != nil {
		DB.Close()
		log.Println("Соединение с базой данных закрыто.")
	}
}
