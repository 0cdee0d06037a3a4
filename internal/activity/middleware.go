package activity

import (
	"encoding/json"
	"fmt"
	"strings"

	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const OldValuesKey = "activity_old_values"

var responseStrip = []string{"success", "token", "error"}
var requestStrip = []string{"password", "password_hash", "token", "currentPassword", "newPassword"}

// SetOldValues lets a handler hand the pre-mutation state to Track.
func SetOldValues(c *fiber.Ctx, v any) {
	c.Locals(OldValuesKey, v)
}

// Track records the wrapped handler's mutation once it has answered with 2xx
// for an authenticated caller.
func Track(rec *Recorder, action models.ActivityAction, table string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			return nil
		}
		p, ok := auth.CurrentUser(c)
		if !ok {
			return nil
		}

		resp := decodeJSON(c.Response().Body())
		rec.Record(c.UserContext(), Entry{
			UserID:    p.ID,
			Action:    action,
			TableName: table,
			RecordID:  recordID(c, resp),
			OldValues: c.Locals(OldValuesKey),
			NewValues: newValues(c, resp),
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		})
		return nil
	}
}

func decodeJSON(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

func recordID(c *fiber.Ctx, resp any) string {
	if id := c.Params("id"); id != "" {
		return id
	}
	switch v := resp.(type) {
	case map[string]any:
		if id, ok := v["id"]; ok && id != nil {
			return formatID(id)
		}
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok && m["id"] != nil {
				ids = append(ids, formatID(m["id"]))
			}
		}
		return strings.Join(ids, ",")
	}
	return ""
}

func formatID(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprint(v)
}

// newValues prefers the response body and falls back to the request body,
// with credentials removed from both.
func newValues(c *fiber.Ctx, resp any) any {
	if m, ok := resp.(map[string]any); ok {
		if out := without(m, responseStrip); len(out) > 0 {
			return out
		}
	}
	if m, ok := decodeJSON(c.Body()).(map[string]any); ok {
		if out := without(m, requestStrip); len(out) > 0 {
			return out
		}
	}
	return nil
}

func without(m map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	// credentials never land in the log even when echoed back
	for _, k := range requestStrip {
		delete(out, k)
	}
	return out
}
