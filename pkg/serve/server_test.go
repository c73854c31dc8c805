package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hsmatch/pkg/store"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// run feeds requests to a fresh server and returns every response after
// the ready message.
func run(t *testing.T, requests []string, opts ...Option) []Response {
	t.Helper()
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	out := &bytes.Buffer{}

	srv := NewServer(in, out, opts...)
	require.NoError(t, srv.Run(context.Background()))

	var responses []Response
	dec := json.NewDecoder(out)
	for {
		var resp Response
		if err := dec.Decode(&resp); err == io.EOF {
			break
		} else {
			require.NoError(t, err)
		}
		responses = append(responses, resp)
	}
	require.NotEmpty(t, responses)
	require.Equal(t, "ready", responses[0].Type)
	return responses[1:]
}

func dataAs[T any](t *testing.T, resp Response) T {
	t.Helper()
	require.True(t, resp.Success, "response failed: %+v", resp.Error)
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestServer_SendsReadyOnStart(t *testing.T) {
	in := strings.NewReader("")
	out := &bytes.Buffer{}

	srv := NewServer(in, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately to exit after ready

	_ = srv.Run(ctx)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "ready", resp.Type)
	ready := dataAs[ReadyData](t, resp)
	assert.Equal(t, Version, ready.Version)
	assert.NotEmpty(t, ready.Backend)
}

func TestServer_CompileScanRelease(t *testing.T) {
	responses := run(t, []string{
		`{"type":"compile","id":"c1","payload":{"expressions":[{"expression":"foo","id":1,"flags":256},{"expression":"bar","id":2,"flags":[256]}],"mode":"block"}}`,
		`{"type":"make_scratch","payload":{"database":1}}`,
		`{"type":"scan","payload":{"database":1,"scratch":1,"content":"xxfoo bar"}}`,
		`{"type":"release","payload":{"scratch":1}}`,
		`{"type":"release","payload":{"database":1}}`,
		`{"type":"release","payload":{"database":1}}`,
	})
	require.Len(t, responses, 6)

	db := dataAs[DatabaseData](t, responses[0])
	assert.Equal(t, uint64(1), db.Database)
	assert.Equal(t, "BLOCK", db.Mode)
	assert.JSONEq(t, `"c1"`, string(responses[0].ID))

	assert.Equal(t, uint64(1), dataAs[ScratchData](t, responses[1]).Scratch)

	scan := dataAs[ScanData](t, responses[2])
	assert.Equal(t, []types.MatchRecord{{ID: 1, From: 2, To: 5}, {ID: 2, From: 6, To: 9}}, scan.Matches)

	assert.True(t, responses[3].Success)
	assert.True(t, responses[4].Success)

	require.False(t, responses[5].Success)
	assert.Equal(t, "released", responses[5].Error.Kind)
}

func TestServer_ScanVectored(t *testing.T) {
	// "Zm9v" and "YmFy" are base64 for "foo" and "bar".
	responses := run(t, []string{
		`{"type":"compile","payload":{"expression":"bar","flags":256,"mode":4}}`,
		`{"type":"make_scratch","payload":{"database":1}}`,
		`{"type":"scan_vectored","payload":{"database":1,"scratch":1,"blocks":["Zm9v","YmFy"]}}`,
	})
	require.Len(t, responses, 3)

	scan := dataAs[ScanData](t, responses[2])
	assert.Equal(t, []types.MatchRecord{{ID: 0, From: 3, To: 6}}, scan.Matches)
}

func TestServer_CompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    string
		field   string
	}{
		{"neither expression nor list", `{"mode":1}`, "usage", ""},
		{"both", `{"expression":"a","expressions":[{"expression":"b"}],"mode":1}`, "usage", ""},
		{"missing mode", `{"expression":"a"}`, "usage", "mode"},
		{"flags string", `{"expression":"a","flags":"caseless","mode":1}`, "usage", "flags"},
		{"pattern flags object", `{"expressions":[{"expression":"a"},{"expression":"b","flags":{}}],"mode":1}`, "usage", "expressions[1].flags"},
		{"platform tune negative", `{"expression":"a","mode":1,"platform":{"tune":-1}}`, "usage", "platform.tune"},
		{"unknown mode", `{"expression":"a","mode":"sideways"}`, "usage", "mode"},
		{"bad expression", `{"expressions":[{"expression":"ok"},{"expression":"("}],"mode":1}`, "compile", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := run(t, []string{`{"type":"compile","payload":` + tt.payload + `}`})
			require.Len(t, responses, 1)

			resp := responses[0]
			require.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, resp.Error.Kind, resp.Error.Message)
			assert.Equal(t, tt.field, resp.Error.Field)
			if tt.kind == "compile" {
				require.NotNil(t, resp.Error.Expression)
				assert.Equal(t, 1, *resp.Error.Expression)
				assert.Equal(t, "HS_COMPILER_ERROR", resp.Error.Code)
			}
		})
	}
}

func TestServer_SerializeDeserialize(t *testing.T) {
	responses := run(t, []string{
		`{"type":"compile","payload":{"expression":"needle","flags":256,"mode":"block"}}`,
		`{"type":"serialize","payload":{"database":1}}`,
	})
	require.Len(t, responses, 2)
	blob := dataAs[DeserializePayload](t, responses[1])
	require.NotEmpty(t, blob.Blob)

	raw, err := json.Marshal(Request{Type: "deserialize", Payload: mustJSON(t, blob)})
	require.NoError(t, err)

	responses = run(t, []string{
		string(raw),
		`{"type":"info","payload":{"database":1}}`,
		`{"type":"make_scratch","payload":{"database":1}}`,
		`{"type":"scan","payload":{"database":1,"scratch":1,"data":"aGF5bmVlZGxl"}}`,
	})
	require.Len(t, responses, 4)
	assert.Equal(t, uint64(1), dataAs[DatabaseData](t, responses[0]).Database)

	info := dataAs[map[string]any](t, responses[1])
	assert.Contains(t, info["info"], "Version: ")

	// "aGF5bmVlZGxl" is base64 for "hayneedle".
	scan := dataAs[ScanData](t, responses[3])
	assert.Equal(t, []types.MatchRecord{{ID: 0, From: 3, To: 9}}, scan.Matches)
}

func TestServer_ScratchOperations(t *testing.T) {
	responses := run(t, []string{
		`{"type":"compile","payload":{"expression":"a","mode":1}}`,
		`{"type":"compile","payload":{"expressions":[{"expression":"b"},{"expression":"c"},{"expression":"d"}],"mode":1}}`,
		`{"type":"make_scratch","payload":{"database":1}}`,
		`{"type":"scratch_size","payload":{"scratch":1}}`,
		`{"type":"scratch_grow","payload":{"scratch":1,"database":2}}`,
		`{"type":"scratch_size","payload":{"scratch":1}}`,
		`{"type":"scratch_clone","payload":{"scratch":1}}`,
		`{"type":"make_scratch","payload":{"database":2,"scratch":2}}`,
		`{"type":"scratch_size","payload":{"scratch":7}}`,
	})
	require.Len(t, responses, 9)

	before := dataAs[map[string]int](t, responses[3])["size"]
	assert.Equal(t, uint64(1), dataAs[ScratchData](t, responses[4]).Scratch)
	after := dataAs[map[string]int](t, responses[5])["size"]
	assert.GreaterOrEqual(t, after, before)

	assert.Equal(t, uint64(2), dataAs[ScratchData](t, responses[6]).Scratch)
	assert.Equal(t, uint64(2), dataAs[ScratchData](t, responses[7]).Scratch)

	require.False(t, responses[8].Success)
	assert.Equal(t, "usage", responses[8].Error.Kind)
	assert.Equal(t, "scratch", responses[8].Error.Field)
}

func TestServer_Introspection(t *testing.T) {
	responses := run(t, []string{
		`{"type":"expression_info","payload":{"expression":"ab+","flags":0}}`,
		`{"type":"current_platform"}`,
		`{"type":"version"}`,
	})
	require.Len(t, responses, 3)

	info := dataAs[types.ExprInfo](t, responses[0])
	assert.Equal(t, uint32(2), info.MinWidth)
	assert.Equal(t, types.UnboundedWidth, info.MaxWidth)

	assert.True(t, responses[1].Success)
	assert.Equal(t, Version, dataAs[ReadyData](t, responses[2]).Version)
}

func TestServer_ScanWrongMode(t *testing.T) {
	responses := run(t, []string{
		`{"type":"compile","payload":{"expression":"a","mode":"vectored"}}`,
		`{"type":"make_scratch","payload":{"database":1}}`,
		`{"type":"scan","payload":{"database":1,"scratch":1,"content":"a"}}`,
	})
	require.Len(t, responses, 3)

	require.False(t, responses[2].Success)
	assert.Equal(t, "engine", responses[2].Error.Kind)
	assert.Equal(t, "HS_DB_MODE_ERROR", responses[2].Error.Code)
}

func TestServer_Catalog(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()

	responses := run(t, []string{
		`{"type":"compile","payload":{"expression":"needle","flags":256,"mode":"block"}}`,
		`{"type":"catalog_put","payload":{"name":"needles","database":1}}`,
		`{"type":"catalog_list"}`,
		`{"type":"catalog_get","payload":{"name":"needles"}}`,
		`{"type":"catalog_delete","payload":{"name":"needles"}}`,
		`{"type":"catalog_get","payload":{"name":"needles"}}`,
	}, WithCatalog(st))
	require.Len(t, responses, 6)

	assert.True(t, responses[1].Success)
	list := dataAs[[]store.Entry](t, responses[2])
	require.Len(t, list, 1)
	assert.Equal(t, "needles", list[0].Name)
	assert.Equal(t, uint64(2), dataAs[DatabaseData](t, responses[3]).Database)
	assert.True(t, responses[4].Success)
	assert.False(t, responses[5].Success)
}

func TestServer_CatalogDisabled(t *testing.T) {
	responses := run(t, []string{`{"type":"catalog_list"}`})
	require.Len(t, responses, 1)
	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].Error.Message, "no catalog")
}

func TestServer_GracefulShutdownOnContext(t *testing.T) {
	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	srv := NewServer(pr, out)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- srv.Run(ctx)
	}()

	// Wait for ready signal
	time.Sleep(100 * time.Millisecond)

	cancel()
	pw.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServer_ShutdownReleasesHandles(t *testing.T) {
	in := strings.NewReader(`{"type":"compile","payload":{"expression":"a","mode":1}}` + "\n" +
		`{"type":"make_scratch","payload":{"database":1}}` + "\n")
	srv := NewServer(in, io.Discard)
	require.NoError(t, srv.Run(context.Background()))

	assert.Equal(t, 0, srv.databases.len())
	assert.Equal(t, 0, srv.scratches.len())
}

func TestServer_CloseCommand(t *testing.T) {
	in := strings.NewReader(`{"type":"close","payload":{}}` + "\n" + `{"type":"version"}` + "\n")
	out := &bytes.Buffer{}

	srv := NewServer(in, out)
	require.NoError(t, srv.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1) // Only ready signal
}

func TestServer_UnknownCommand(t *testing.T) {
	responses := run(t, []string{`{"type":"invalid","payload":{}}`})
	require.Len(t, responses, 1)

	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].Error.Message, "unknown request type")
}

func TestServer_MalformedJSON(t *testing.T) {
	in := strings.NewReader(`{invalid json}` + "\n")
	out := &bytes.Buffer{}

	srv := NewServer(in, out)
	_ = srv.Run(context.Background())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)

	var resp Response
	_ = json.Unmarshal([]byte(lines[1]), &resp)

	assert.False(t, resp.Success)
	assert.Equal(t, "decode", resp.Type)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
