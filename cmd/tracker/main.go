// Command tracker is a headless client for the recording backend: it logs
// in, loads the tracked collection, optionally submits a new recording,
// and watches stage progress until everything resolves.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"talktrack/internal/entity"
	"talktrack/internal/gateway"
	"talktrack/internal/recordings"
	"talktrack/internal/session"
	"talktrack/internal/shared/config"
	"talktrack/internal/shared/telemetry"
)

func main() {
	var (
		kindFlag   = flag.String("kind", "conversations", "collection to track: conversations or interviews")
		uploadFlag = flag.String("upload", "", "path of an audio file to submit before watching")
		nameFlag   = flag.String("name", "", "display name for the submitted recording")
	)
	flag.Parse()

	cfg := config.Load()
	if err := telemetry.Init(cfg.Env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	username := strings.TrimSpace(os.Getenv("TRACKER_USERNAME"))
	password := os.Getenv("TRACKER_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("TRACKER_USERNAME and TRACKER_PASSWORD are required")
	}

	kind := entity.KindConversation
	if *kindFlag == "interviews" {
		kind = entity.KindInterview
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(func() {
		telemetry.Error("session.invalid", map[string]any{"action": "log in again"})
		stop()
	})
	client := gateway.New(cfg.APIBaseURL, sess, gateway.Options{
		RequestTimeout: cfg.RequestTimeout,
		UploadTimeout:  cfg.UploadTimeout,
	})

	if err := client.Login(ctx, username, password); err != nil {
		log.Fatalf("login: %v", err)
	}
	me, err := client.Me(ctx)
	if err != nil {
		log.Fatalf("profile: %v", err)
	}
	telemetry.Info("tracker.authenticated", map[string]any{"user": me.Username})

	svc := recordings.NewService(kind, client, cfg.PollInterval)
	defer svc.Dispose()

	if err := svc.LoadAll(ctx); err != nil {
		log.Fatalf("load %s: %v", kind.Resource(), err)
	}

	if *uploadFlag != "" {
		if err := submit(ctx, svc, *uploadFlag, *nameFlag); err != nil {
			log.Fatalf("submit recording: %v", err)
		}
	}

	watch(ctx, svc)
}

func submit(ctx context.Context, svc *recordings.Service, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	created, err := svc.Create(ctx, gateway.Submission{
		Name:     name,
		FileName: filepath.Base(path),
		MIMEType: "audio/mpeg",
		Media:    f,
		Size:     info.Size(),
		Progress: func(sent, total int64) {
			if total > 0 {
				fmt.Printf("\ruploading %d%%", sent*100/total)
			}
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("\rcreated %s %d (%s)\n", created.Kind, created.ID, created.Name)
	return nil
}

// watch prints stage status until nothing remains pending or the process
// is interrupted. The poll scheduler does the actual refreshing; this
// loop only renders the store.
func watch(ctx context.Context, svc *recordings.Service) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entities := svc.List()
			pending := entity.PendingKeys(entities)
			render(entities)
			if len(pending) == 0 {
				fmt.Println("all stages resolved")
				return
			}
		}
	}
}

func render(entities []entity.Entity) {
	for _, e := range entities {
		var parts []string
		for _, st := range entity.StagesFor(e.Kind) {
			parts = append(parts, fmt.Sprintf("%s=%s", st, e.StageStatus(st)))
		}
		fmt.Printf("#%d %-30q %s\n", e.ID, e.Name, strings.Join(parts, " "))
	}
	fmt.Println()
}
