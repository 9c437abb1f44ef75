package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultVersion = "5.131"
	DefaultBaseURL = "https://api.vk.com/method"
	DefaultTimeout = 3 * time.Second

	maxWallCount = 100 // VK wall.get max per request
)

var ErrGroupNotFound = errors.New("group not found")

// Config собирается один раз на сессию и дальше не меняется.
type Config struct {
	Token   string
	Version string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	HTTP *http.Client
}

type WallItem struct {
	ID     int    `json:"id"`
	Date   int64  `json:"date"`
	Text   string `json:"text"`
	Pinned int    `json:"is_pinned,omitempty"`
}

func (it WallItem) IsPinned() bool { return it.Pinned == 1 }

func (it WallItem) CreatedAt() time.Time { return time.Unix(it.Date, 0) }

// APIError: ошибка, которую вернул сам VK (а не сеть)
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error,omitempty"`
}

type group struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

type wallGetResp struct {
	Count int        `json:"count"`
	Items []WallItem `json:"items"`
}

type createCommentResp struct {
	CommentID int `json:"comment_id"`
}

func New(cfg Config) *Client {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:  cfg,
		HTTP: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Config() Config { return c.cfg }

// ResolveGroupID: имя/алиас/id группы -> owner_id вида "-123"
func (c *Client) ResolveGroupID(ctx context.Context, nameOrID string) (string, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	if nameOrID == "" {
		return "", fmt.Errorf("%w: empty group id", ErrGroupNotFound)
	}

	var groups []group
	err := c.call(ctx, "groups.getById", url.Values{"group_id": {nameOrID}}, &groups)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrGroupNotFound, nameOrID, err)
	}
	if len(groups) == 0 || groups[0].ID == 0 {
		return "", fmt.Errorf("%w: %s", ErrGroupNotFound, nameOrID)
	}
	return fmt.Sprintf("-%d", groups[0].ID), nil
}

// RecentPosts: один wall.get с offset=0, только посты владельца, новые первыми
func (c *Client) RecentPosts(ctx context.Context, ownerID string, count int) ([]WallItem, error) {
	if count <= 0 {
		count = 1
	}
	if count > maxWallCount {
		count = maxWallCount
	}

	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("offset", "0")
	q.Set("count", strconv.Itoa(count))
	q.Set("filter", "owner")

	var data wallGetResp
	if err := c.call(ctx, "wall.get", q, &data); err != nil {
		return nil, err
	}
	return data.Items, nil
}

func (c *Client) CreateComment(ctx context.Context, ownerID string, postID int, text string) (int, error) {
	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("post_id", strconv.Itoa(postID))
	q.Set("message", text)

	var data createCommentResp
	if err := c.call(ctx, "wall.createComment", q, &data); err != nil {
		return 0, err
	}
	return data.CommentID, nil
}

// SendMessage: messages.send от имени сообщества (нужен ключ бота)
func (c *Client) SendMessage(ctx context.Context, userID string, randomID int64, text string) (int, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("random_id", strconv.FormatInt(randomID, 10))
	q.Set("message", text)

	var msgID int
	if err := c.call(ctx, "messages.send", q, &msgID); err != nil {
		return 0, err
	}
	return msgID, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	u, err := url.Parse(c.cfg.BaseURL + "/" + method)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("access_token", c.cfg.Token)
	q.Set("v", c.cfg.Version)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", method, resp.StatusCode)
	}

	var data envelope
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	if data.Error != nil {
		return data.Error
	}
	if out == nil {
		return nil
	}
	if len(data.Response) == 0 {
		return fmt.Errorf("%s: empty response", method)
	}
	if err := json.Unmarshal(data.Response, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// LatestUnpinned: первый незакреплённый пост из выдачи (выдача уже отсортирована)
func LatestUnpinned(items []WallItem) (WallItem, bool) {
	for _, it := range items {
		if it.IsPinned() {
			continue
		}
		return it, true
	}
	return WallItem{}, false
}

func PostURL(ownerID string, postID int) string {
	return fmt.Sprintf("https://vk.com/wall%s_%d", ownerID, postID)
}

func CommentURL(ownerID string, postID, commentID int) string {
	return fmt.Sprintf("%s?reply=%d", PostURL(ownerID, postID), commentID)
}
