package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        injury_type TEXT NOT NULL DEFAULT '',
        injury_description TEXT NOT NULL DEFAULT '',
        fitness_goal TEXT NOT NULL DEFAULT '',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS progress (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        pain_level INTEGER NOT NULL,
        mobility INTEGER NOT NULL,
        strength INTEGER NOT NULL,
        date TEXT NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(user *User) (*User, error) {
	res, err := s.db.Exec(
		"INSERT INTO users (name, email, password_hash, injury_type, injury_description, fitness_goal) VALUES (?, ?, ?, ?, ?, ?)",
		user.Name, user.Email, user.PasswordHash, user.InjuryType, user.InjuryDescription, user.FitnessGoal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetUserByID(id)
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.db.QueryRow(
		"SELECT id, name, email, password_hash, injury_type, injury_description, fitness_goal, created_at FROM users WHERE email = ?",
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.InjuryType, &user.InjuryDescription, &user.FitnessGoal, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow(
		"SELECT id, name, email, password_hash, injury_type, injury_description, fitness_goal, created_at FROM users WHERE id = ?",
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.InjuryType, &user.InjuryDescription, &user.FitnessGoal, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return &user, nil
}

// UpdateProfile replaces the mutable profile fields of a user.
func (s *SQLiteStore) UpdateProfile(userID int64, name, injuryType, injuryDescription, fitnessGoal string) (*User, error) {
	_, err := s.db.Exec(
		"UPDATE users SET name = ?, injury_type = ?, injury_description = ?, fitness_goal = ? WHERE id = ?",
		name, injuryType, injuryDescription, fitnessGoal, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetUserByID(userID)
}

// Progress methods

func (s *SQLiteStore) CreateProgress(p *Progress) (*Progress, error) {
	res, err := s.db.Exec(
		"INSERT INTO progress (user_id, pain_level, mobility, strength, date) VALUES (?, ?, ?, ?, ?)",
		p.UserID, p.PainLevel, p.Mobility, p.Strength, p.Date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert progress: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

func (s *SQLiteStore) ListProgressByUser(userID int64) ([]Progress, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, pain_level, mobility, strength, date FROM progress WHERE user_id = ? ORDER BY date ASC, id ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var entries []Progress
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.ID, &p.UserID, &p.PainLevel, &p.Mobility, &p.Strength, &p.Date); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}
