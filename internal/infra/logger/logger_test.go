package logger

import "testing"

func TestMaskDID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"did:example:1234567890abcdef", "did:example:***cdef"},
		{"did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK", "did:key:***2doK"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskDID(tc.in); got != tc.want {
			t.Fatalf("MaskDID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if got := MaskDID("not-a-did-but-sensitive"); got == "not-a-did-but-sensitive" {
		t.Fatalf("malformed identifiers must still be masked, got %q", got)
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.1.100"); got != "192.168.*.*" {
		t.Fatalf("unexpected IPv4 mask: %s", got)
	}

	if got := MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"); got != "2001:0db8:85a3:0000:*:*:*:*" {
		t.Fatalf("unexpected IPv6 mask: %s", got)
	}

	if got := MaskIP(""); got != "" {
		t.Fatalf("empty input should stay empty, got %q", got)
	}
}
