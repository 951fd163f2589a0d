package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/query-counter-go/example/blog/internal/adapters"
)

const (
	tableUsers = "users"
	tablePosts = "posts"
	colID      = "id"
	colName    = "name"
	colUserID  = "user_id"
	colTitle   = "title"
)

var schemaStatements = []string{
	`DROP TABLE IF EXISTS posts`,
	`DROP TABLE IF EXISTS users`,
	`CREATE TABLE users (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`,
	`CREATE TABLE posts (id BIGINT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users (id), title TEXT NOT NULL)`,
	`CREATE INDEX posts_user_id_idx ON posts (user_id)`,
}

// Repository reads and writes users and posts. All statements are built as prepared statements,
// so literal values never end up in the SQL text.
type Repository struct {
	db      adapters.DBAdapter
	dialect goqu.DialectWrapper
}

// NewSQLXRepository creates a Repository on db; dialect is DialectPostgres or DialectSQLite.
func NewSQLXRepository(db *sqlx.DB, dialect string) (*Repository, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, errors.Join(ErrUnsupportedDialect, errors.New(dialect))
	}

	return &Repository{db: adapters.NewSQLXAdapter(db), dialect: goqu.Dialect(dialect)}, nil
}

// NewPGXRepository creates a Repository on a PostgreSQL pool.
func NewPGXRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: adapters.NewPGXAdapter(pool), dialect: goqu.Dialect(DialectPostgres)}
}

// ResetSchema drops and recreates the users and posts tables.
func (r *Repository) ResetSchema(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := r.db.Exec(ctx, statement); err != nil {
			return errors.Join(ErrWritingFailed, err)
		}
	}

	return nil
}

// Seed inserts userCount users with postsPerUser posts each.
func (r *Repository) Seed(ctx context.Context, userCount, postsPerUser int) error {
	if userCount == 0 {
		return nil
	}

	users := make([]any, 0, userCount)
	posts := make([]any, 0, userCount*postsPerUser)

	postID := int64(1)
	for u := 1; u <= userCount; u++ {
		users = append(users, goqu.Record{colID: int64(u), colName: fmt.Sprintf("user-%d", u)})

		for p := 1; p <= postsPerUser; p++ {
			posts = append(posts, goqu.Record{colID: postID, colUserID: int64(u), colTitle: fmt.Sprintf("post %d of user %d", p, u)})
			postID++
		}
	}

	if err := r.insert(ctx, tableUsers, users); err != nil {
		return err
	}

	if len(posts) == 0 {
		return nil
	}

	return r.insert(ctx, tablePosts, posts)
}

// AllUsers returns all users ordered by id.
func (r *Repository) AllUsers(ctx context.Context) ([]User, error) {
	query := r.dialect.From(tableUsers).
		Select(colID, colName).
		Order(goqu.I(colID).Asc()).
		Prepared(true)

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := make([]User, 0)
	for rows.Next() {
		var user User
		if scanErr := rows.Scan(&user.ID, &user.Name); scanErr != nil {
			return nil, errors.Join(ErrScanningRowFailed, scanErr)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryingFailed, err)
	}

	return users, nil
}

// PostsByUser returns the posts of one user ordered by id.
func (r *Repository) PostsByUser(ctx context.Context, userID int64) ([]Post, error) {
	return r.posts(ctx, goqu.C(colUserID).Eq(userID))
}

// PostsByUsers returns the posts of all given users in a single statement.
func (r *Repository) PostsByUsers(ctx context.Context, userIDs []int64) ([]Post, error) {
	if len(userIDs) == 0 {
		return []Post{}, nil
	}

	return r.posts(ctx, goqu.C(colUserID).In(userIDs))
}

func (r *Repository) posts(ctx context.Context, where exp.Expression) ([]Post, error) {
	query := r.dialect.From(tablePosts).
		Select(colID, colUserID, colTitle).
		Where(where).
		Order(goqu.I(colID).Asc()).
		Prepared(true)

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	posts := make([]Post, 0)
	for rows.Next() {
		var post Post
		if scanErr := rows.Scan(&post.ID, &post.UserID, &post.Title); scanErr != nil {
			return nil, errors.Join(ErrScanningRowFailed, scanErr)
		}
		posts = append(posts, post)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryingFailed, err)
	}

	return posts, nil
}

func (r *Repository) query(ctx context.Context, query *goqu.SelectDataset) (adapters.DBRows, error) {
	sqlQuery, args, toSQLErr := query.ToSQL()
	if toSQLErr != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errors.Join(ErrQueryingFailed, err)
	}

	return rows, nil
}

func (r *Repository) insert(ctx context.Context, table string, records []any) error {
	sqlQuery, args, toSQLErr := r.dialect.Insert(table).Rows(records...).Prepared(true).ToSQL()
	if toSQLErr != nil {
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, err := r.db.Exec(ctx, sqlQuery, args...); err != nil {
		return errors.Join(ErrWritingFailed, err)
	}

	return nil
}
