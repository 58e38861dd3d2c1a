package csvsource

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func readAll(t *testing.T, next func() ([]string, error)) [][]string {
	t.Helper()
	var out [][]string
	for {
		rec, err := next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, rec)
	}
}

func TestReaderSource(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "header only",
			input: "title, type, value, category\n",
			want:  nil,
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "rows",
			input: "title,type,value,category\nSalary, income, 1000, Work\nRent,outcome,300,Home\n",
			want: [][]string{
				{"Salary", "income", "1000", "Work"},
				{"Rent", "outcome", "300", "Home"},
			},
		},
		{
			name:  "short rows padded",
			input: "title,type,value,category\nCoffee,outcome,3\nOnly\n",
			want: [][]string{
				{"Coffee", "outcome", "3", ""},
				{"Only", "", "", ""},
			},
		},
		{
			name:  "quoted comma",
			input: "h\n\"Dinner, Friday\",outcome,\"12,50\",Food\n",
			want: [][]string{
				{"Dinner, Friday", "outcome", "12,50", "Food"},
			},
		},
		{
			name:  "stray quote kept",
			input: "h\nPizza \"large,outcome,10,Food\nTea,outcome,2,Drinks\n",
			want: [][]string{
				{`Pizza "large`, "outcome", "10", "Food"},
				{"Tea", "outcome", "2", "Drinks"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewReaderSource(strings.NewReader(tt.input))
			got := readAll(t, src.Next)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if err := src.Release(); err != nil {
				t.Errorf("Release: %v", err)
			}
		})
	}
}

func TestReaderSourceMalformed(t *testing.T) {
	src := NewReaderSource(strings.NewReader("h\n\"unterminated,income,1,x\n"))
	if _, err := src.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestFileSourceReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.csv")
	if err := os.WriteFile(path, []byte("title,type,value,category\nLunch,outcome,10,Food\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := readAll(t, src.Next)
	if len(got) != 1 || got[0][0] != "Lunch" {
		t.Fatalf("got %q", got)
	}

	if err := src.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error")
	}
}
