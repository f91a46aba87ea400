package store

import (
	"context"
	"database/sql"
	"strings"
)

// Contact returns the name fields for one account, or nil when the
// contact table has no row for it.
func (db *ChatDB) Contact(ctx context.Context, username string) (*ContactDetail, error) {
	var c ContactDetail
	var nickname, remark, alias, avatar sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT username, nickname, remark, alias, small_head_url
		FROM contact WHERE username = ?`, username).
		Scan(&c.Username, &nickname, &remark, &alias, &avatar)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Nickname = nickname.String
	c.Remark = remark.String
	c.Alias = alias.String
	c.Avatar = avatar.String
	return &c, nil
}

// DisplayNames resolves display names for a set of accounts in one
// query: remark wins over nickname, with the raw id as last resort.
func (db *ChatDB) DisplayNames(ctx context.Context, usernames []string) (map[string]string, error) {
	out := make(map[string]string, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}

	query := `
		SELECT username,
			COALESCE(NULLIF(remark,''), NULLIF(nickname,''), username) AS display_name
		FROM contact
		WHERE username IN (?` + strings.Repeat(",?", len(usernames)-1) + `)`
	args := make([]any, len(usernames))
	for i, u := range usernames {
		args[i] = u
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var username, name string
		if err := rows.Scan(&username, &name); err != nil {
			return nil, err
		}
		out[username] = name
	}
	return out, rows.Err()
}

// AvatarURLs returns the avatar URL per account where one is recorded.
func (db *ChatDB) AvatarURLs(ctx context.Context, usernames []string) (map[string]string, error) {
	out := make(map[string]string, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}

	query := `
		SELECT username, small_head_url FROM contact
		WHERE username IN (?` + strings.Repeat(",?", len(usernames)-1) + `)
		AND small_head_url IS NOT NULL AND small_head_url != ''`
	args := make([]any, len(usernames))
	for i, u := range usernames {
		args[i] = u
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var username, url string
		if err := rows.Scan(&username, &url); err != nil {
			return nil, err
		}
		out[username] = url
	}
	return out, rows.Err()
}

// GroupMembers returns the member account ids of a chat room.
func (db *ChatDB) GroupMembers(ctx context.Context, roomID string) ([]string, error) {
	var memberList sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT member_list FROM chat_room WHERE username = ?`, roomID).
		Scan(&memberList)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var members []string
	for _, m := range strings.FieldsFunc(memberList.String, func(r rune) bool {
		return r == ';' || r == ',' || r == '^' || r == '\n'
	}) {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}
	return members, nil
}

// RoomExtBuffer returns the raw ext_buffer blob of a chat room, nil
// when the room is unknown or carries none.
func (db *ChatDB) RoomExtBuffer(ctx context.Context, roomID string) ([]byte, error) {
	var buf []byte
	err := db.QueryRowContext(ctx,
		`SELECT ext_buffer FROM chat_room WHERE username = ?`, roomID).
		Scan(&buf)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
