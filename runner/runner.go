package runner

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/padronlabs/padron/tlmt"
	"github.com/padronlabs/padron/tlmt/gonoop"
	"github.com/padronlabs/padron/tlmt/goposthog"
)

const (
	RunModeAPI = iota + 1
)

var (
	ErrInvalidRunMode = errors.New("invalid run mode")
)

type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

type Config struct {
	Addr             string
	Dsn              string
	DataFolder       string
	WarehouseDsn     string
	AwsAccessKey     string
	AwsSecretKey     string
	AwsRegion        string
	S3Bucket         string
	S3PublicBaseURL  string
	ClerkAPIKey      string
	AllowedOrigins   []string
	Debug            bool
	DisableTelemetry bool
	RunMode          int
}

func ParseConfig() *Config {
	cfg := Config{}

	var origins string

	flag.StringVar(&cfg.Addr, "addr", ":8080", "address to listen on")
	flag.StringVar(&cfg.Dsn, "dsn", "", "postgres connection string for the registry [default: embedded sqlite]")
	flag.StringVar(&cfg.DataFolder, "data-folder", "padrondata", "data folder for the embedded sqlite registry")
	flag.StringVar(&cfg.WarehouseDsn, "warehouse-dsn", "", "postgres connection string for the analytics mirror [default: disabled]")
	flag.StringVar(&cfg.AwsAccessKey, "aws-access-key", "", "AWS access key")
	flag.StringVar(&cfg.AwsSecretKey, "aws-secret-key", "", "AWS secret key")
	flag.StringVar(&cfg.AwsRegion, "aws-region", "", "AWS region")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", "", "S3 bucket for rehosted profile images")
	flag.StringVar(&cfg.S3PublicBaseURL, "s3-public-url", "", "public base URL for rehosted images [default: virtual-hosted S3 URL]")
	flag.StringVar(&cfg.ClerkAPIKey, "clerk-api-key", "", "Clerk API key")
	flag.StringVar(&origins, "cors-origins", "", "comma separated list of allowed CORS origins [default: any]")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")

	flag.Parse()

	if cfg.Dsn == "" {
		cfg.Dsn = os.Getenv("PADRON_DSN")
	}

	if cfg.WarehouseDsn == "" {
		cfg.WarehouseDsn = os.Getenv("PADRON_WAREHOUSE_DSN")
	}

	if cfg.AwsAccessKey == "" {
		cfg.AwsAccessKey = os.Getenv("MY_AWS_ACCESS_KEY")
	}

	if cfg.AwsSecretKey == "" {
		cfg.AwsSecretKey = os.Getenv("MY_AWS_SECRET_KEY")
	}

	if cfg.AwsRegion == "" {
		cfg.AwsRegion = os.Getenv("MY_AWS_REGION")
	}

	if cfg.S3Bucket == "" {
		cfg.S3Bucket = os.Getenv("PADRON_S3_BUCKET")
	}

	if cfg.ClerkAPIKey == "" {
		cfg.ClerkAPIKey = os.Getenv("CLERK_API_KEY")
	}

	if origins == "" {
		origins = os.Getenv("PADRON_CORS_ORIGINS")
	}

	if origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	if cfg.ClerkAPIKey == "" {
		panic("a Clerk API key must be provided (flag -clerk-api-key or CLERK_API_KEY)")
	}

	cfg.RunMode = RunModeAPI

	return &cfg
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

func Telemetry() tlmt.Telemetry {
	telemetryOnce.Do(func() {
		disableTel := func() bool {
			return os.Getenv("DISABLE_TELEMETRY") == "1"
		}()

		if disableTel {
			telemetry = gonoop.New()

			return
		}

		val, err := goposthog.New("phc_CHYBGEd1eJZzDE7ZWhyiSFuXa9KMLRnaYN47aoIAY2A", "https://eu.i.posthog.com")
		if err != nil || val == nil {
			telemetry = gonoop.New()

			return
		}

		telemetry = val
	})

	return telemetry
}

func wrapText(text string, width int) []string {
	var lines []string

	currentLine := ""
	currentWidth := 0

	for _, r := range text {
		runeWidth := runewidth.RuneWidth(r)
		if currentWidth+runeWidth > width {
			lines = append(lines, currentLine)
			currentLine = string(r)
			currentWidth = runeWidth
		} else {
			currentLine += string(r)
			currentWidth += runeWidth
		}
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func banner(messages []string, width int) string {
	if width <= 0 {
		var err error

		width, _, err = term.GetSize(0)
		if err != nil {
			width = 80
		}
	}

	if width < 20 {
		width = 20
	}

	contentWidth := width - 4

	var wrappedLines []string
	for _, message := range messages {
		wrappedLines = append(wrappedLines, wrapText(message, contentWidth)...)
	}

	var builder strings.Builder

	builder.WriteString("╔" + strings.Repeat("═", width-2) + "╗\n")

	for _, line := range wrappedLines {
		lineWidth := runewidth.StringWidth(line)
		paddingRight := contentWidth - lineWidth

		if paddingRight < 0 {
			paddingRight = 0
		}

		builder.WriteString(fmt.Sprintf("║ %s%s ║\n", line, strings.Repeat(" ", paddingRight)))
	}

	builder.WriteString("╚" + strings.Repeat("═", width-2) + "╝\n")

	return builder.String()
}

func Banner() {
	message1 := "📇 Padrón user registry API"
	message2 := "📦 Source and documentation: https://github.com/padronlabs/padron"

	fmt.Fprintln(os.Stderr, banner([]string{message1, message2}, 0))
}
