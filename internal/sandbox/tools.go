package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// mediator is the host-side implementation of the callable surface exposed
// to scripts: http.get, http.post, json.decode, json.encode. It never lets a
// tool failure propagate as an interpreter error — every failure surfaces
// as a script-visible string, prefixed with a stable tag.
type mediator struct {
	client           *http.Client
	allowedHosts     map[string]bool
	essentialKeys    map[string]bool
	maxResponseBytes int64
	log              *zap.Logger
}

func newMediator(client *http.Client, allowedHosts, essentialKeys map[string]bool, maxResponseBytes int64, log *zap.Logger) *mediator {
	if log == nil {
		log = zap.NewNop()
	}
	return &mediator{
		client:           client,
		allowedHosts:     allowedHosts,
		essentialKeys:    essentialKeys,
		maxResponseBytes: maxResponseBytes,
		log:              log,
	}
}

// checkURL enforces the URL policy: scheme in {http, https}, host present,
// host in the allowlist or ending in .local.
func (m *mediator) checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if strings.HasSuffix(host, ".local") {
		return nil
	}
	if m.allowedHosts[host] {
		return nil
	}
	return fmt.Errorf("host %q is not in the allowlist", host)
}

func (m *mediator) httpGet(ctx context.Context, rawURL string) string {
	if err := m.checkURL(rawURL); err != nil {
		m.log.Debug("http.get rejected by URL policy", zap.String("url", rawURL), zap.Error(err))
		return "Invalid URL: " + err.Error()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "Request failed: " + err.Error()
	}
	return m.do(req)
}

func (m *mediator) httpPost(ctx context.Context, rawURL string, headers map[string]string, body string) string {
	if err := m.checkURL(rawURL); err != nil {
		m.log.Debug("http.post rejected by URL policy", zap.String("url", rawURL), zap.Error(err))
		return "Invalid URL: " + err.Error()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(body))
	if err != nil {
		return "Request failed: " + err.Error()
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return m.do(req)
}

func (m *mediator) do(req *http.Request) string {
	resp, err := m.client.Do(req)
	if err != nil {
		return "Request failed: " + err.Error()
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxResponseBytes))
	if err != nil {
		return "HTTP Error: " + err.Error()
	}
	if resp.StatusCode >= 400 {
		return fmt.Sprintf("HTTP Error: status %d", resp.StatusCode)
	}
	return string(data)
}

// jsonDecode parses s and runs the response-simplification policy before
// handing the result back to the script.
func (m *mediator) jsonDecode(s string) (Bag, string) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Bag{}, "JSON decode error: " + err.Error()
	}
	b, kept := m.simplify(raw)
	if !kept {
		return Null(), ""
	}
	return b, ""
}

func (m *mediator) jsonEncode(v Bag) (string, string) {
	data, err := json.Marshal(bagToAny(v))
	if err != nil {
		return "", "JSON encode error: " + err.Error()
	}
	return string(data), ""
}

// simplify reduces a parsed JSON structure before it reaches a script,
// intentionally losing information to keep script-visible data small,
// bounded, and easy to marshal back out. Concrete policy:
// primitives are preserved; a mapping is kept only if it carries at least
// one of the curated essential keys; a sequence is kept only if it has at
// most 5 elements; anything else is dropped (omitted from its parent).
func (m *mediator) simplify(v any) (Bag, bool) {
	switch val := v.(type) {
	case nil:
		return Null(), true
	case bool:
		return BoolOf(val), true
	case string:
		return StringOf(val), true
	case float64:
		if val == math.Trunc(val) {
			return IntOf(int64(val)), true
		}
		return FloatOf(val), true
	case []any:
		if len(val) > 5 {
			return Bag{}, false
		}
		seq := make([]Bag, 0, len(val))
		for _, elem := range val {
			eb, ok := m.simplify(elem)
			if !ok {
				continue
			}
			seq = append(seq, eb)
		}
		return SequenceOf(seq), true
	case map[string]any:
		essential := false
		for k := range val {
			if m.essentialKeys[k] {
				essential = true
				break
			}
		}
		if !essential {
			return Bag{}, false
		}
		out := make(map[string]Bag, len(val))
		for k, elem := range val {
			eb, ok := m.simplify(elem)
			if !ok {
				continue
			}
			out[k] = eb
		}
		return MappingOf(out), true
	default:
		return Bag{}, false
	}
}

func bagToAny(b Bag) any {
	switch b.Kind {
	case KindNull:
		return nil
	case KindBool:
		return b.Bool
	case KindInt:
		return b.Int
	case KindFloat:
		return b.Float
	case KindString:
		return b.String
	case KindSequence:
		out := make([]any, len(b.Sequence))
		for i, v := range b.Sequence {
			out[i] = bagToAny(v)
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(b.Mapping))
		for k, v := range b.Mapping {
			out[k] = bagToAny(v)
		}
		return out
	default:
		return nil
	}
}
