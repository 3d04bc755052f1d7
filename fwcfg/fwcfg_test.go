package fwcfg_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/c35s/smictl/fwcfg"
	"github.com/c35s/smictl/sim"
)

func newClient(files map[string][]byte) fwcfg.Client {
	m := sim.New()
	m.Files = files
	return fwcfg.Client{IO: m}
}

func TestProbe(t *testing.T) {
	c := newClient(map[string][]byte{})
	if err := c.Probe(); err != nil {
		t.Fatal(err)
	}
}

func TestProbeNoDevice(t *testing.T) {
	c := newClient(nil)
	if err := c.Probe(); !errors.Is(err, fwcfg.ErrNoDevice) {
		t.Errorf("error isn't ErrNoDevice: %v", err)
	}
}

func TestFind(t *testing.T) {
	c := newClient(map[string][]byte{
		"etc/a": {1, 2, 3},
		"etc/b": {4, 5},
	})

	f, err := c.Find("etc/b")
	if err != nil {
		t.Fatal(err)
	}

	if f.Name != "etc/b" {
		t.Errorf("name %q", f.Name)
	}

	if f.Size != 2 {
		t.Errorf("size %d != 2", f.Size)
	}

	if _, err := c.Find("etc/missing"); !errors.Is(err, fwcfg.ErrNotFound) {
		t.Errorf("error isn't ErrNotFound: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	c := newClient(map[string][]byte{
		"etc/a": {0xca, 0xfe, 0xba, 0xbe},
	})

	f, err := c.Find("etc/a")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("whole file", func(t *testing.T) {
		buf := make([]byte, 4)
		if n := c.ReadFile(f, buf); n != 4 {
			t.Fatalf("read %d bytes != 4", n)
		}

		if !bytes.Equal(buf, []byte{0xca, 0xfe, 0xba, 0xbe}) {
			t.Errorf("read %x", buf)
		}
	})

	t.Run("long buffer is truncated", func(t *testing.T) {
		buf := make([]byte, 8)
		if n := c.ReadFile(f, buf); n != 4 {
			t.Fatalf("read %d bytes != 4", n)
		}
	})

	t.Run("short buffer reads a prefix", func(t *testing.T) {
		buf := make([]byte, 2)
		if n := c.ReadFile(f, buf); n != 2 {
			t.Fatalf("read %d bytes != 2", n)
		}

		if !bytes.Equal(buf, []byte{0xca, 0xfe}) {
			t.Errorf("read %x", buf)
		}
	})
}
