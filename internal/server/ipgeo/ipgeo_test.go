package ipgeo

import "testing"

func TestCountryCodeNilChecker(t *testing.T) {
	t.Parallel()
	var c *Checker
	if got := c.CountryCode("203.0.113.1"); got != "" {
		t.Errorf("nil checker = %q", got)
	}
}

func TestCountryCodeLocalAddresses(t *testing.T) {
	t.Parallel()
	c := &Checker{}
	for _, ip := range []string{"127.0.0.1", "::1", "10.1.2.3", "192.168.0.5", "0.0.0.0", "fe80::1"} {
		if got := c.CountryCode(ip); got != "local" {
			t.Errorf("CountryCode(%q) = %q, want local", ip, got)
		}
	}
	if got := c.CountryCode("not-an-ip"); got != "" {
		t.Errorf("invalid IP = %q", got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Open(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Error("Open succeeded on a missing file")
	}
}
