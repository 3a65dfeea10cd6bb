package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as flat key/value maps with a stable key order.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	isJSON := h.cfg.format == formatJSON
	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if isJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		h.collectAttr(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collectAttr(fields, a)
		return true
	})
	addContextFields(ctx, fields)

	if rid, ok := stringField(fields, "rid"); ok && rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if isJSON {
				fields["rid_full"] = rid
			}
			fields["rid"] = compact
		}
	}
	if event, ok := stringField(fields, "event"); !ok || event == "" {
		fields["event"] = r.Message
		if r.Message == "" {
			fields["event"] = "unknown"
		}
	}
	if component, ok := stringField(fields, "component"); !ok || component == "" {
		fields["component"] = "app"
	}

	sanitizeEnumerations(fields)
	pruneEmpty(fields)

	var line []byte
	if isJSON {
		var err error
		if line, err = formatJSONLine(fields, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = formatKVLine(fields, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collectAttr(fields map[string]any, attr slog.Attr) {
	flattenAttr(strings.Join(h.groups, "."), attr, func(k string, v slog.Value) {
		if key, val, ok := normalizeAttr(k, v); ok {
			fields[key] = val
		}
	})
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	if key == "" {
		key = prefix
	} else if prefix != "" {
		key = prefix + "." + key
	}
	val := attr.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, child := range val.Group() {
			flattenAttr(key, child, fn)
		}
		return
	}
	fn(key, val)
}

// durationKey maps duration attributes onto *_ms keys.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	if key == "" {
		return "", nil, false
	}
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case []int:
		return key, x, true
	case []int64:
		return key, x, true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func sanitizeEnumerations(fields map[string]any) {
	if s, ok := stringField(fields, "status"); ok && s != "" {
		normalized, _ := normalizeStatus(s)
		fields["status"] = normalized
	}
	if o, ok := stringField(fields, "outcome"); ok && o != "" {
		if normalized, valid := normalizeOutcome(o); valid {
			fields["outcome"] = normalized
		} else {
			delete(fields, "outcome")
		}
	}
}

func pruneEmpty(fields map[string]any) {
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			if val == "" {
				delete(fields, k)
			}
		case nil:
			delete(fields, k)
		}
	}
}

func formatJSONLine(fields map[string]any, order []string) ([]byte, error) {
	var buf strings.Builder
	buf.WriteByte('{')
	for i, key := range orderedKeys(fields, order) {
		data, err := json.Marshal(fields[key])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(key))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

func formatKVLine(fields map[string]any, order []string) []byte {
	var b strings.Builder
	for _, key := range orderedKeys(fields, order) {
		if key == "rid_full" || key == "ts_unix_nano" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(formatValueKV(fields[key]))
	}
	return []byte(b.String())
}

func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	prefixLen := len(keys)
	for key := range fields {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[prefixLen:])
	return keys
}

func formatValueKV(val any) string {
	s := fmt.Sprint(val)
	if str, ok := val.(string); ok {
		s = str
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= 32 || r == '=' || r == '"'
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	setDefault := func(key string, val any, present bool) {
		if !present {
			return
		}
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	rid := RIDFrom(ctx)
	setDefault("rid", rid, rid != "")
	uid := UserIDFrom(ctx)
	setDefault("user_id", uid, uid != 0)
	updateID := UpdateIDFrom(ctx)
	setDefault("update_id", updateID, updateID != 0)
	cid := ChatIDFrom(ctx)
	setDefault("chat_id", cid, cid != 0)
	hid := HandlerFrom(ctx)
	setDefault("handler", hid, hid != "")
}
