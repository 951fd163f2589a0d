package blog

import "context"

// LoadFeedNPlusOne loads every user and then queries the posts of each user separately:
// one statement for the users plus one per user.
func LoadFeedNPlusOne(ctx context.Context, repo *Repository) ([]FeedItem, error) {
	users, err := repo.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	feed := make([]FeedItem, 0, len(users))
	for _, user := range users {
		posts, postsErr := repo.PostsByUser(ctx, user.ID)
		if postsErr != nil {
			return nil, postsErr
		}

		feed = append(feed, FeedItem{User: user, Posts: posts})
	}

	return feed, nil
}

// LoadFeedBatched loads the same feed as LoadFeedNPlusOne with exactly two statements.
func LoadFeedBatched(ctx context.Context, repo *Repository) ([]FeedItem, error) {
	users, err := repo.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(users))
	for _, user := range users {
		userIDs = append(userIDs, user.ID)
	}

	posts, err := repo.PostsByUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	postsByUser := make(map[int64][]Post, len(users))
	for _, post := range posts {
		postsByUser[post.UserID] = append(postsByUser[post.UserID], post)
	}

	feed := make([]FeedItem, 0, len(users))
	for _, user := range users {
		userPosts := postsByUser[user.ID]
		if userPosts == nil {
			userPosts = []Post{}
		}

		feed = append(feed, FeedItem{User: user, Posts: userPosts})
	}

	return feed, nil
}
