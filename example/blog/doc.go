// Package blog is the demo domain for query-counter-go: users with posts.
//
// LoadFeedNPlusOne loads the feed the naive way (one posts query per user) and is flagged
// by a QueryCounter, LoadFeedBatched loads the same feed with two statements and is not.
// Statements are built with goqu and executed through sqlx (database/sql drivers) or pgxpool.
package blog
