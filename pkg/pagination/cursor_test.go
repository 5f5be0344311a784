package pagination

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		V:   1,
		Wid: "wb-123",
		S:   "Sheet1",
		Off: 200,
		Ps:  50,
		Wbv: 3,
	}
	tok, err := EncodeCursor(c)
	if err != nil {
		t.Fatalf("EncodeCursor error: %v", err)
	}
	// token should be url-safe base64 (no '+', '/', '=')
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-url-safe chars: %q", tok)
	}
	out, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor error: %v", err)
	}
	if out.Wid != c.Wid || out.S != c.S || out.Off != c.Off || out.Ps != c.Ps || out.Wbv != c.Wbv {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, c)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := []string{
		"",    // empty
		"!!!", // not base64
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		// missing required fields
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"wid":"x","s":"","off":0,"ps":10}`),
		mustB64(`{"v":1,"wid":"","s":"S","off":0,"ps":10}`),
		mustB64(`{"v":1,"wid":"x","s":"S","off":-1,"ps":10}`),
		mustB64(`{"v":1,"wid":"x","s":"S","off":0,"ps":0}`),
	}
	for i, tok := range cases {
		if _, err := DecodeCursor(tok); err == nil {
			t.Fatalf("case %d: expected error for token %q", i, tok)
		}
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(0, 10); got != 10 {
		t.Fatalf("NextOffset(0,10) = %d, want 10", got)
	}
	if got := NextOffset(-5, 10); got != 10 {
		t.Fatalf("NextOffset(-5,10) = %d, want 10", got)
	}
	if got := NextOffset(7, 0); got != 7 {
		t.Fatalf("NextOffset(7,0) = %d, want 7", got)
	}
}

func FuzzDecodeCursor(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"wid":"x"}`),
		mustB64(`{"v":1,"wid":"wb","s":"S","off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
