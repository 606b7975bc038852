package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// MinColumns is the number of fixed VCF columns up to and including INFO.
const MinColumns = 8

// FlagPolicy controls how INFO entries without "=value" are handled.
type FlagPolicy int

const (
	// FlagIgnore drops flag-only INFO entries.
	FlagIgnore FlagPolicy = iota
	// FlagReject fails the line when a flag-only INFO entry is present.
	FlagReject
)

// ParseFlagPolicy converts a config value ("ignore" or "reject") to a FlagPolicy.
func ParseFlagPolicy(s string) (FlagPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore":
		return FlagIgnore, nil
	case "reject":
		return FlagReject, nil
	}
	return FlagIgnore, fmt.Errorf("unknown INFO flag policy %q (want ignore or reject)", s)
}

func (p FlagPolicy) String() string {
	if p == FlagReject {
		return "reject"
	}
	return "ignore"
}

// DecodeOptions configures line decoding.
type DecodeOptions struct {
	Flags FlagPolicy

	// Validate, if set, is called for every INFO key-value pair.
	// A non-nil error aborts decoding of the line.
	Validate func(key, value string) error
}

// Parser reads records from a VCF file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	header     []string
	opts       DecodeOptions
}

// NewParser creates a parser for the given file.
// Supports both plain VCF and gzipped VCF (.vcf.gz) files.
func NewParser(path string, opts DecodeOptions) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin, opts)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{file: file, opts: opts}

	buf := make([]byte, 2)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read vcf header: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek vcf file: %w", err)
	}

	// gzip magic number (0x1f, 0x8b)
	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReaderSize(p.gzipReader, 1<<20)
	} else {
		p.reader = bufio.NewReaderSize(file, 1<<20)
	}

	return p, nil
}

// NewParserFromReader creates a parser from an uncompressed io.Reader.
func NewParserFromReader(r io.Reader, opts DecodeOptions) (*Parser, error) {
	return &Parser{
		reader: bufio.NewReader(r),
		opts:   opts,
	}, nil
}

// Next reads the next record, skipping header and empty lines.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read vcf line: %w", err)
		}
		if line == "" && err == io.EOF {
			return nil, nil
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if line[0] == '#' {
			p.header = append(p.header, line)
			continue
		}

		rec, derr := DecodeLine(line, p.opts)
		if derr != nil {
			if pe, ok := derr.(*ParseError); ok {
				pe.Line = p.lineNumber
				return nil, pe
			}
			return nil, derr
		}
		return rec, nil
	}
}

// DecodeLine decodes a single VCF body line.
// Errors are returned as *ParseError without line context.
func DecodeLine(line string, opts DecodeOptions) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < MinColumns {
		return nil, &ParseError{
			Message: fmt.Sprintf("expected at least %d columns, found %d", MinColumns, len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos < 1 {
		return nil, &ParseError{
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	info, err := parseInfo(fields[7], opts)
	if err != nil {
		return nil, &ParseError{Message: err.Error(), Err: err}
	}

	return &Record{
		Chrom: fields[0],
		Pos:   pos,
		Ref:   fields[3],
		Alt:   fields[4],
		Info:  info,
	}, nil
}

// parseInfo parses the INFO field into a map.
func parseInfo(info string, opts DecodeOptions) (map[string]string, error) {
	result := make(map[string]string)
	if info == "." || info == "" {
		return result, nil
	}

	for _, kv := range strings.Split(info, ";") {
		if kv == "" {
			continue
		}
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			if opts.Flags == FlagReject {
				return nil, fmt.Errorf("flag INFO entry %q is not supported", kv)
			}
			continue
		}
		if opts.Validate != nil {
			if err := opts.Validate(key, val); err != nil {
				return nil, err
			}
		}
		result[key] = val
	}

	return result, nil
}

// Header returns the header lines seen so far.
func (p *Parser) Header() []string {
	return p.header
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
	Err     error // underlying cause, e.g. a vocabulary validation error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
