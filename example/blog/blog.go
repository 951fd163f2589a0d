package blog

import "errors"

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

var ErrUnsupportedDialect = errors.New("unsupported sql dialect")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingFailed = errors.New("querying failed")
var ErrScanningRowFailed = errors.New("scanning row failed")
var ErrWritingFailed = errors.New("writing failed")

// User is a blog author.
type User struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Post is an article written by a User.
type Post struct {
	ID     int64  `db:"id"`
	UserID int64  `db:"user_id"`
	Title  string `db:"title"`
}

// FeedItem is one user together with all of their posts.
type FeedItem struct {
	User  User
	Posts []Post
}
