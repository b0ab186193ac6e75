package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/idtoken"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/middleware"
	"github.com/iliyamo/citizen-booking/internal/paging"
)

const defaultLimit = 20

// IDCodec translates booking ids between their route form and the numeric
// primary key.  v1 routes expose raw ids, v2 routes opaque tokens.
type IDCodec interface {
	Parse(raw string) (int64, error)
	Format(id int64) any
}

// NumericIDs is the v1 codec.
type NumericIDs struct{}

func (NumericIDs) Parse(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("invalid booking id")
	}
	return id, nil
}

func (NumericIDs) Format(id int64) any { return id }

// TokenIDs is the v2 codec.  An undecodable token reads as a missing
// booking.
type TokenIDs struct{ Codec *idtoken.Codec }

func (t TokenIDs) Parse(raw string) (int64, error) {
	id, err := t.Codec.Decode(raw)
	if err != nil {
		return 0, apperr.BookingNotFound()
	}
	return id, nil
}

func (t TokenIDs) Format(id int64) any { return t.Codec.Encode(id) }

// callerOf returns the caller resolved by the auth middleware.
func callerOf(c echo.Context) (authscope.Caller, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return authscope.Caller{}, apperr.Unauthorized("missing caller")
	}
	return caller, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadRequest("invalid " + name)
	}
	return n, nil
}

func queryInt64(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return nil, apperr.BadRequest("invalid " + name)
	}
	return &n, nil
}

// queryTime parses an RFC 3339 timestamp.
func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.BadRequest("invalid " + name + ", expected RFC 3339")
	}
	t = t.UTC()
	return &t, nil
}

// queryList splits a comma separated query value, dropping blanks.
func queryList(c echo.Context, name string) []string {
	var out []string
	for _, p := range strings.Split(c.QueryParam(name), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryStatuses(c echo.Context) ([]lifecycle.Status, error) {
	var out []lifecycle.Status
	for _, raw := range queryList(c, "status") {
		s, err := lifecycle.Parse(raw)
		if err != nil {
			return nil, apperr.BadRequest("invalid status " + raw)
		}
		out = append(out, s)
	}
	return out, nil
}

// pageRequest reads page (default 1), limit (default 20) and maxId.
func pageRequest(c echo.Context) (paging.Request, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return paging.Request{}, err
	}
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil {
		return paging.Request{}, err
	}
	maxID, err := queryInt64(c, "maxId")
	if err != nil {
		return paging.Request{}, err
	}
	return paging.Request{Page: page, Limit: limit, MaxID: maxID}, nil
}
