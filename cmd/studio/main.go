package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"garmentstudio/internal/domain"
	"garmentstudio/internal/infra"
	"garmentstudio/internal/session"
	"garmentstudio/internal/submit"
	"garmentstudio/internal/webhook"
)

const usage = `usage: studio <command> [flags]

commands:
  signin   authenticate and store a local session
  signup   register a new account
  submit   send a visualization request and wait for the result
  whoami   show the stored session
  logout   clear the stored session
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "studio").Logger()

	sessions := session.NewStore(session.NewFileStorage(sessionPath()), cfg.SessionTTL)
	client := webhook.NewClient(webhook.Options{
		SubmitURL: cfg.SubmitWebhookURL,
		AuthURL:   cfg.AuthWebhookURL,
		Logger:    &logger,
	})

	switch os.Args[1] {
	case "signin":
		runAuth(client, sessions, webhook.ModeSignIn, os.Args[2:])
	case "signup":
		runAuth(client, sessions, webhook.ModeSignUp, os.Args[2:])
	case "submit":
		runSubmit(cfg, &logger, client, sessions, os.Args[2:])
	case "whoami":
		runWhoami(sessions)
	case "logout":
		sessions.Clear()
		fmt.Println("signed out")
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func sessionPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "garmentstudio", "session.json")
}

func runAuth(client *webhook.Client, sessions *session.Store, mode string, args []string) {
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	var name, email, phone, password string
	if mode == webhook.ModeSignUp {
		fs.StringVar(&name, "name", "", "Full name")
		fs.StringVar(&phone, "phone", "", "Phone number")
	}
	fs.StringVar(&email, "email", "", "Email address")
	fs.StringVar(&password, "password", "", "Password")
	_ = fs.Parse(args)

	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "-email and -password are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resolved, err := client.Authenticate(ctx, webhook.Credentials{
		Mode:     mode,
		Name:     name,
		Email:    email,
		Phone:    phone,
		Password: password,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if resolved == webhook.ModeSignIn {
		if _, err := sessions.Create(email); err != nil {
			fmt.Fprintf(os.Stderr, "failed to store session: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("signed in as %s\n", email)
		return
	}
	fmt.Println("account created, run signin to continue")
}

func runSubmit(cfg *infra.Config, logger *infra.Logger, client *webhook.Client, sessions *session.Store, args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	var (
		flow        string
		email       string
		format      string
		garmentType string
		designPath  string
		garmentPath string
		modelPath   string
	)
	fs.StringVar(&flow, "flow", "", "Flow: 1 (design to garment), 2 (garment render), 3 (garment on model)")
	fs.StringVar(&email, "email", "", "Delivery email")
	fs.StringVar(&format, "format", domain.OutputFormatFront, "Output format")
	fs.StringVar(&garmentType, "garment-type", "", "Garment type (flow 1)")
	fs.StringVar(&designPath, "design", "", "Design image path")
	fs.StringVar(&garmentPath, "garment", "", "Garment image path")
	fs.StringVar(&modelPath, "model", "", "Model image path")
	_ = fs.Parse(args)

	token, ok := sessions.Load()
	if !ok {
		fmt.Fprintln(os.Stderr, "no active session, run signin first")
		os.Exit(1)
	}

	normalized, ok := domain.NormalizeFlow(flow)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown flow %q\n", flow)
		os.Exit(1)
	}
	req := domain.Request{
		Flow:         normalized,
		Email:        email,
		OutputFormat: format,
		GarmentType:  garmentType,
	}
	var err error
	if req.DesignImage, err = readFile(designPath); err != nil {
		fmt.Fprintf(os.Stderr, "design image: %v\n", err)
		os.Exit(1)
	}
	if req.GarmentImage, err = readFile(garmentPath); err != nil {
		fmt.Fprintf(os.Stderr, "garment image: %v\n", err)
		os.Exit(1)
	}
	if req.ModelImage, err = readFile(modelPath); err != nil {
		fmt.Fprintf(os.Stderr, "model image: %v\n", err)
		os.Exit(1)
	}

	controller := submit.NewController(submit.Options{
		Service:         client,
		Logger:          logger,
		RateLimitWindow: cfg.RateLimitWindow,
		SoftNoticeDelay: cfg.SoftNoticeDelay,
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	})
	updates, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	if err := controller.Submit(token, req); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Ctrl-C aborts the in-flight submission instead of killing the process
	// outright, so the webhook call is properly canceled.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-interrupt:
			controller.Cancel()
		case st := <-updates:
			fmt.Println(st.Message)
			if !st.State.Terminal() {
				continue
			}
			if st.State == submit.StateResolved {
				for _, record := range controller.Results().All() {
					fmt.Println(record.URL)
				}
			}
			if st.Kind == submit.KindError {
				os.Exit(1)
			}
			return
		}
	}
}

func readFile(path string) (*domain.Attachment, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{Filename: filepath.Base(path), Data: data}, nil
}

func runWhoami(sessions *session.Store) {
	token, ok := sessions.Load()
	if !ok {
		fmt.Println("no active session")
		return
	}
	fmt.Printf("%s (expires %s)\n", token.Identity, token.ExpiresAt.Format(time.RFC3339))
}
