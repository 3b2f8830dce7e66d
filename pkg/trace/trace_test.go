package trace

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoadSymbolsParsesHexAddresses(t *testing.T) {
	src := strings.NewReader("# comment\n8000 START\n$9000 LOOP\n0xA000 DONE\n\nmalformed\n")
	syms, err := LoadSymbols(src)
	if err != nil {
		t.Fatal(err)
	}
	cases := map[uint16]string{0x8000: "START", 0x9000: "LOOP", 0xA000: "DONE"}
	for addr, want := range cases {
		got, ok := syms.Lookup(addr)
		if !ok || got != want {
			t.Fatalf("Lookup(%#04x) = %q,%v want %q,true", addr, got, ok, want)
		}
	}
	if _, ok := syms.Lookup(0x1234); ok {
		t.Fatal("unexpected symbol at unmapped address")
	}
}

func TestSinkAnnotatesKnownAddress(t *testing.T) {
	syms, err := LoadSymbols(strings.NewReader("8000 START\n"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	sink := NewSink(&buf, syms)
	sink.Trace(Entry{PC: 0x8000, Opcode: 0xC3})
	if !strings.Contains(buf.String(), "START") {
		t.Fatalf("trace output missing symbol annotation: %q", buf.String())
	}
}

func TestSinkWithoutSymbolsOmitsAnnotation(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, nil)
	sink.Trace(Entry{PC: 0x8000, Opcode: 0x00})
	if strings.Contains(buf.String(), ";") {
		t.Fatalf("unexpected annotation with nil symbols: %q", buf.String())
	}
}
