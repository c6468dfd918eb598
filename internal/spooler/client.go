// Package spooler talks IPP to the local CUPS scheduler.
package spooler

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/gabriel-vasile/mimetype"
)

const (
	defaultHost          = "localhost"
	defaultPort          = 631
	defaultUser          = "warnain"
	fallbackDocFormat    = "application/octet-stream"
	printerURIPrefix     = "ipp://localhost/printers/"
	printerStateIdle     = 3
	printerStateBusy     = 4
	printerStateStopped  = 5
	attrPrinterName      = "printer-name"
	attrPrinterState     = "printer-state"
	attrPrinterStateMsg  = "printer-state-message"
	attrPrinterInfo      = "printer-info"
	attrPrinterLocation  = "printer-location"
	attrPrinterAccepting = "printer-is-accepting-jobs"
)

var (
	errMissingPrinter = errors.New("printer name is required")
	errMissingFile    = errors.New("file path is required")
)

// Printer is one destination reported by the scheduler.
type Printer struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	State        int    `json:"state"`
	StateMessage string `json:"state_message"`
	Accepting    bool   `json:"is_accepting_jobs"`
}

// StateName renders the printer-state enum.
func (p Printer) StateName() string {
	switch p.State {
	case printerStateIdle:
		return "idle"
	case printerStateBusy:
		return "processing"
	case printerStateStopped:
		return "stopped"
	default:
		return strconv.Itoa(p.State)
	}
}

// PrintRequest describes one Print-Job submission.
type PrintRequest struct {
	Printer string
	Path    string
	Title   string
	Copies  int
}

// Job is the scheduler's acknowledgement of a submitted job.
type Job struct {
	ID         int
	URI        string
	State      int
	Reasons    string
	DocFormat  string
	StatusCode string
}

// Config describes how to reach the scheduler.
type Config struct {
	Server     string
	User       string
	Password   string
	UseTLS     bool
	HTTPClient *http.Client
}

// Client issues IPP operations over HTTP.
type Client struct {
	host     string
	port     int
	useTLS   bool
	user     string
	password string
	http     *http.Client
}

// NewClient builds a Client. Server accepts host, host:port or an http(s)/ipp(s) URL.
func NewClient(cfg Config) (*Client, error) {
	host, port, useTLS, err := parseServer(cfg.Server)
	if err != nil {
		return nil, err
	}
	if cfg.UseTLS {
		useTLS = true
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		}
	}
	user := strings.TrimSpace(cfg.User)
	if user == "" {
		user = defaultUser
	}
	return &Client{
		host:     host,
		port:     port,
		useTLS:   useTLS,
		user:     user,
		password: cfg.Password,
		http:     httpClient,
	}, nil
}

// PrinterURI returns the scheduler URI for a printer.
func PrinterURI(name string) string {
	return printerURIPrefix + url.PathEscape(strings.TrimSpace(name))
}

// ListPrinters runs CUPS-Get-Printers.
func (c *Client) ListPrinters(ctx context.Context) ([]Printer, error) {
	req := goipp.NewRequest(goipp.DefaultVersion, goipp.OpCupsGetPrinters, uint32(time.Now().UnixNano()))
	addOperationDefaults(req)
	req.Operation.Add(goipp.MakeAttr("requested-attributes", goipp.TagKeyword,
		goipp.String(attrPrinterName),
		goipp.String(attrPrinterState),
		goipp.String(attrPrinterStateMsg),
		goipp.String(attrPrinterAccepting),
		goipp.String(attrPrinterLocation),
		goipp.String(attrPrinterInfo),
	))

	resp, err := c.send(ctx, "/", req, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var printers []Printer
	for _, group := range resp.Groups {
		if group.Tag != goipp.TagPrinterGroup {
			continue
		}
		printer, ok := parsePrinter(group.Attrs)
		if !ok {
			continue
		}
		printers = append(printers, printer)
	}
	return printers, nil
}

// Printer looks a printer up by name. ok is false when the scheduler does not know it.
func (c *Client) Printer(ctx context.Context, name string) (Printer, bool, error) {
	printers, err := c.ListPrinters(ctx)
	if err != nil {
		return Printer{}, false, err
	}
	for _, printer := range printers {
		if printer.Name == name {
			return printer, true, nil
		}
	}
	return Printer{}, false, nil
}

// PrintFile streams the file at req.Path to the printer with Print-Job.
func (c *Client) PrintFile(ctx context.Context, req PrintRequest) (Job, error) {
	if strings.TrimSpace(req.Printer) == "" {
		return Job{}, errMissingPrinter
	}
	if strings.TrimSpace(req.Path) == "" {
		return Job{}, errMissingFile
	}
	file, err := os.Open(req.Path)
	if err != nil {
		return Job{}, err
	}
	defer file.Close()

	format := DetectFormat(req.Path)
	copies := req.Copies
	if copies < 1 {
		copies = 1
	}

	msg := goipp.NewRequest(goipp.DefaultVersion, goipp.OpPrintJob, uint32(time.Now().UnixNano()))
	addOperationDefaults(msg)
	msg.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(PrinterURI(req.Printer))))
	msg.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String(c.user)))
	msg.Operation.Add(goipp.MakeAttribute("job-name", goipp.TagName, goipp.String(req.Title)))
	msg.Operation.Add(goipp.MakeAttribute("document-format", goipp.TagMimeType, goipp.String(format)))
	msg.Job.Add(goipp.MakeAttribute("copies", goipp.TagInteger, goipp.Integer(copies)))

	resp, err := c.send(ctx, "/printers/"+url.PathEscape(req.Printer), msg, file)
	if err != nil {
		return Job{}, err
	}
	if err := checkStatus(resp); err != nil {
		return Job{}, err
	}

	job := Job{DocFormat: format, StatusCode: goipp.Status(resp.Code).String()}
	attrs := resp.Job
	for _, group := range resp.Groups {
		if group.Tag == goipp.TagJobGroup {
			attrs = group.Attrs
			break
		}
	}
	job.ID, _ = strconv.Atoi(findAttr(attrs, "job-id"))
	job.URI = findAttr(attrs, "job-uri")
	job.State, _ = strconv.Atoi(findAttr(attrs, "job-state"))
	job.Reasons = findAttr(attrs, "job-state-reasons")
	if job.ID == 0 {
		return job, fmt.Errorf("spooler: print-job response carried no job-id")
	}
	return job, nil
}

// DetectFormat sniffs the document format from file content.
func DetectFormat(path string) string {
	detected, err := mimetype.DetectFile(path)
	if err != nil || detected == nil {
		return fallbackDocFormat
	}
	format := detected.String()
	if idx := strings.Index(format, ";"); idx >= 0 {
		format = strings.TrimSpace(format[:idx])
	}
	if format == "" {
		return fallbackDocFormat
	}
	return format
}

func (c *Client) send(ctx context.Context, path string, msg *goipp.Message, data io.Reader) (*goipp.Message, error) {
	payload, err := msg.EncodeBytes()
	if err != nil {
		return nil, err
	}
	body := io.Reader(bytes.NewReader(payload))
	if data != nil {
		body = io.MultiReader(bytes.NewReader(payload), data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", goipp.ContentType)
	httpReq.Header.Set("Accept", goipp.ContentType)
	if c.password != "" {
		httpReq.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(httpReq)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("spooler: %s", resp.Status)
	}
	out := &goipp.Message{}
	if err := out.Decode(resp.Body); err != nil {
		return nil, fmt.Errorf("spooler: decode response: %w", err)
	}
	return out, nil
}

func (c *Client) endpoint(path string) string {
	scheme := "http"
	if c.useTLS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(c.host, strconv.Itoa(c.port)) + path
}

func addOperationDefaults(msg *goipp.Message) {
	msg.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	msg.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
}

func checkStatus(resp *goipp.Message) error {
	status := goipp.Status(resp.Code)
	if status < goipp.StatusRedirectionOtherSite {
		return nil
	}
	if message := findAttr(resp.Operation, "status-message"); message != "" {
		return fmt.Errorf("spooler: %s: %s", status, message)
	}
	return fmt.Errorf("spooler: %s", status)
}

func parsePrinter(attrs goipp.Attributes) (Printer, bool) {
	name := findAttr(attrs, attrPrinterName)
	if name == "" {
		return Printer{}, false
	}
	state, _ := strconv.Atoi(findAttr(attrs, attrPrinterState))
	return Printer{
		Name:         name,
		Description:  findAttr(attrs, attrPrinterInfo),
		Location:     findAttr(attrs, attrPrinterLocation),
		State:        state,
		StateMessage: findAttr(attrs, attrPrinterStateMsg),
		Accepting:    strings.EqualFold(findAttr(attrs, attrPrinterAccepting), "true"),
	}, true
}

func findAttr(attrs goipp.Attributes, name string) string {
	for _, attr := range attrs {
		if attr.Name != name {
			continue
		}
		if len(attr.Values) == 0 {
			return ""
		}
		return strings.TrimSpace(attr.Values[0].V.String())
	}
	return ""
}

func parseServer(raw string) (string, int, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultHost, defaultPort, false, nil
	}

	useTLS := false
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", 0, false, fmt.Errorf("spooler: invalid server %q: %w", raw, err)
		}
		switch strings.ToLower(parsed.Scheme) {
		case "https", "ipps":
			useTLS = true
		case "http", "ipp":
		default:
			return "", 0, false, fmt.Errorf("spooler: unsupported scheme %q", parsed.Scheme)
		}
		raw = parsed.Host
	}

	host, portText, err := net.SplitHostPort(raw)
	if err != nil {
		return raw, defaultPort, useTLS, nil
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, false, fmt.Errorf("spooler: invalid port in %q", raw)
	}
	if host == "" {
		host = defaultHost
	}
	return host, port, useTLS, nil
}
