package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func newTestExecutor(allowedHosts []string) *Executor {
	return NewExecutor(allowedHosts, []string{"name", "id"}, 1_000_000, nil, nil, true)
}

func TestExecute_Scenario1_SetsFieldsOnContext(t *testing.T) {
	ex := newTestExecutor(nil)
	ctx := MappingOf(map[string]Bag{"k": StringOf("v")})
	src := `function run(c) c.result='hi' ; c.flag=true ; return c end`

	out, err := ex.Execute(context.Background(), src, ctx, Options{})
	require.Nil(t, err)
	assert.Equal(t, "v", out.Mapping["k"].String)
	assert.Equal(t, "hi", out.Mapping["result"].String)
	assert.True(t, out.Mapping["flag"].Bool)
}

func TestExecute_Scenario2_LoopAccumulatesAndBuildsSequence(t *testing.T) {
	ex := newTestExecutor(nil)
	src := `function run(c) local s=0 for i=1,5 do s=s+i end c.sum=s ; c.nums={1,2,3,4,5} return c end`

	out, err := ex.Execute(context.Background(), src, MappingOf(map[string]Bag{}), Options{})
	require.Nil(t, err)
	assert.Equal(t, int64(15), out.Mapping["sum"].Int)
	require.Equal(t, KindSequence, out.Mapping["nums"].Kind)
	assert.Len(t, out.Mapping["nums"].Sequence, 5)
}

func TestExecute_Scenario3_DangerousConstructIsRejected(t *testing.T) {
	ex := newTestExecutor(nil)
	_, err := ex.Execute(context.Background(), `function run(c) os.execute('x') return c end`, Null(), Options{})
	require.NotNil(t, err)
	assert.Equal(t, KindDangerousConstruct, err.Kind)
}

func TestExecute_Scenario4_MissingEntryIsRejected(t *testing.T) {
	ex := newTestExecutor(nil)
	_, err := ex.Execute(context.Background(), `function other(c) return c end`, Null(), Options{})
	require.NotNil(t, err)
	assert.Equal(t, KindMissingEntry, err.Kind)
}

func TestExecute_Scenario5_TimeoutIsEnforced(t *testing.T) {
	ex := newTestExecutor(nil)
	start := time.Now()
	_, err := ex.Execute(context.Background(), `function run(c) while true do end return c end`, Null(), Options{TimeoutMS: 100})
	elapsed := time.Since(start)

	require.NotNil(t, err)
	assert.Equal(t, KindTimeout, err.Kind)
	assert.Less(t, elapsed, 2000*time.Millisecond)
}

func TestExecute_TimeoutCoversTopLevelScriptBody(t *testing.T) {
	ex := newTestExecutor(nil)
	start := time.Now()
	src := `while true do end
function run(c) return c end`
	_, err := ex.Execute(context.Background(), src, Null(), Options{TimeoutMS: 100})
	elapsed := time.Since(start)

	require.NotNil(t, err)
	assert.Equal(t, KindTimeout, err.Kind)
	assert.Less(t, elapsed, 2000*time.Millisecond)
}

func TestExecute_Scenario6_BlockedHostSurfacesAsScriptString(t *testing.T) {
	ex := newTestExecutor(nil) // empty allowlist
	src := `function run(c) local r = http.get('https://blocked.example/') c.r=r return c end`

	out, err := ex.Execute(context.Background(), src, MappingOf(map[string]Bag{}), Options{})
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(out.Mapping["r"].String, "Invalid URL:"))
}

func TestExecute_RoundTrip(t *testing.T) {
	ex := newTestExecutor(nil)
	ctx := MappingOf(map[string]Bag{"a": StringOf("x"), "b": IntOf(3)})
	out, err := ex.Execute(context.Background(), "function run(c) return c end", ctx, Options{})
	require.Nil(t, err)
	assert.Equal(t, ctx, out)
}

func TestExecute_SandboxTightness(t *testing.T) {
	ex := newTestExecutor(nil)
	for _, names := range dangerousGlobals {
		for _, name := range names {
			src := `function run(c) c.observed = (` + name + ` == nil) return c end`
			out, err := ex.Execute(context.Background(), src, MappingOf(map[string]Bag{}), Options{})
			require.Nilf(t, err, "global %q", name)
			assert.Truef(t, out.Mapping["observed"].Bool, "global %q should observe nil", name)
		}
	}
}

func TestExecute_IsolationAcrossCalls(t *testing.T) {
	ex := newTestExecutor(nil)
	setSrc := `function run(c) temp_table = {1,2,3} return c end`
	readSrc := `function run(c) c.leaked = (temp_table ~= nil) return c end`

	_, err := ex.Execute(context.Background(), setSrc, Null(), Options{})
	require.Nil(t, err)

	out, err := ex.Execute(context.Background(), readSrc, MappingOf(map[string]Bag{}), Options{})
	require.Nil(t, err)
	assert.False(t, out.Mapping["leaked"].Bool, "temp_table must not persist between executions")
}

func TestExecute_ConcurrentCallsDoNotInterfere(t *testing.T) {
	ex := newTestExecutor(nil)
	outs := make([]Bag, 8)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			src := `function run(c) c.n = c.n + 1 return c end`
			out, err := ex.Execute(context.Background(), src, MappingOf(map[string]Bag{"n": IntOf(int64(i))}), Options{})
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i := 0; i < 8; i++ {
		assert.Equal(t, int64(i+1), outs[i].Mapping["n"].Int)
	}
}

func TestExecute_CycleSafety(t *testing.T) {
	ex := newTestExecutor(nil)
	src := `function run(c) local t = {} t.self = t return t end`
	out, err := ex.Execute(context.Background(), src, Null(), Options{})
	require.Nil(t, err)
	_, hasCircular := out.Mapping["self"].Mapping[circularRefKey]
	assert.True(t, hasCircular)
}

func TestExecute_NoGoroutineLeakOnSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	ex := newTestExecutor(nil)
	_, err := ex.Execute(context.Background(), "function run(c) return c end", Null(), Options{})
	require.Nil(t, err)
}

func TestExecute_WithLiveHTTPEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"bulbasaur","id":1}`))
	}))
	defer srv.Close()
	host := strings.Split(strings.TrimPrefix(srv.URL, "http://"), ":")[0]

	ex := newTestExecutor([]string{host})
	src := `function run(c)
		local raw = http.get(c.url)
		local decoded = json.decode(raw)
		c.name = decoded.name
		return c
	end`
	out, err := ex.Execute(context.Background(), src, MappingOf(map[string]Bag{"url": StringOf(srv.URL)}), Options{})
	require.Nil(t, err)
	assert.Equal(t, "bulbasaur", out.Mapping["name"].String)
}
