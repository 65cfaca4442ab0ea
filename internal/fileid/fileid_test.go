package fileid

import (
	"strings"
	"testing"
)

func TestContentID(t *testing.T) {
	id1 := ContentID([]byte("page one"))
	id2 := ContentID([]byte("page one"))
	if id1 != id2 {
		t.Errorf("same content should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, contentPrefix) {
		t.Errorf("ID should have prefix %q: got %q", contentPrefix, id1)
	}
	if ContentID([]byte("page two")) == id1 {
		t.Error("different content should give different IDs")
	}
	if len(ContentID(nil)) != len(contentPrefix)+64 {
		t.Errorf("unexpected ID length for empty content")
	}
}

func TestPathID_normalized(t *testing.T) {
	id1 := PathID("/inbox/scan.pdf")
	id2 := PathID("/inbox/./scan.pdf")
	id3 := PathID("/inbox//scan.pdf")
	if id1 != id2 || id1 != id3 {
		t.Errorf("equivalent paths should match: %q %q %q", id1, id2, id3)
	}
	if PathID("/inbox/other.pdf") == id1 {
		t.Error("different paths should give different IDs")
	}
	if !strings.HasPrefix(id1, pathPrefix) {
		t.Errorf("ID should have prefix %q: got %q", pathPrefix, id1)
	}
}
