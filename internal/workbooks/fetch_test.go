package workbooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	sh := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sh, "A1", &[]string{"scope", "tons"}))
	require.NoError(t, f.SetSheetRow(sh, "A2", &[]interface{}{"scope1", 42}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func TestOpenURL_Loopback(t *testing.T) {
	payload := workbookBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	m := NewManager(time.Minute, time.Second, nil, time.Now)
	defer m.Close(context.Background())

	id, err := m.OpenURL(context.Background(), srv.URL+"/report.xlsx")
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())

	h, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, SourceURL, h.Source)

	err = m.WithRead(id, func(f *excelize.File, _ int64) error {
		rows, rerr := f.GetRows(f.GetSheetName(0))
		require.NoError(t, rerr)
		require.Len(t, rows, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestOpenURL_SchemeRejected(t *testing.T) {
	m := NewManager(time.Minute, time.Second, nil, time.Now)

	_, err := m.OpenURL(context.Background(), "ftp://example.com/report.xlsx")
	require.ErrorIs(t, err, ErrURLNotAllowed)

	_, err = m.OpenURL(context.Background(), "http://example.com/report.xlsx")
	require.ErrorIs(t, err, ErrURLNotAllowed)

	require.Equal(t, 0, m.Count())
}

func TestOpenURL_TooLarge(t *testing.T) {
	payload := workbookBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Second, gate, time.Now)
	m.SetFetchLimits(16, time.Second)

	_, err := m.OpenURL(context.Background(), srv.URL+"/report.xlsx")
	require.ErrorIs(t, err, ErrFetchTooLarge)
	// Capacity released on failure
	require.Equal(t, gate.acquires.Load(), gate.releases.Load())
	require.Equal(t, 0, m.Count())
}

func TestOpenURL_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	m := NewManager(time.Minute, time.Second, nil, time.Now)

	_, err := m.OpenURL(context.Background(), srv.URL+"/missing.xlsx")
	require.Error(t, err)
	require.Equal(t, 0, m.Count())
}
