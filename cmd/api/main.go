package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tablemend/tablemend-api/internal/application/dispatch"
	"github.com/tablemend/tablemend-api/internal/application/retention"
	"github.com/tablemend/tablemend-api/internal/config"
	"github.com/tablemend/tablemend-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/tablemend/tablemend-api/internal/infrastructure/jwt"
	s3infra "github.com/tablemend/tablemend-api/internal/infrastructure/s3"
	snsinfra "github.com/tablemend/tablemend-api/internal/infrastructure/sns"
	transporthttp "github.com/tablemend/tablemend-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if the key is missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// S3 attachment store.
	s3Client := s3infra.NewClient(cfg)
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketName, cfg.AWSRegion)

	// SNS push sender (optional — graceful fallback).
	var push snsinfra.PushSender
	if sender, err := snsinfra.NewSender(cfg); err == nil {
		push = sender
	} else {
		log.Printf("WARN: SNS push sender not available: %v", err)
	}

	messageRepo := dynamo.NewMessageRepo(dynamoClient, cfg.DynamoTables.Messages)
	threadRepo := dynamo.NewThreadRepo(dynamoClient, cfg.DynamoTables.Threads)
	readStateRepo := dynamo.NewReadStateRepo(dynamoClient, cfg.DynamoTables.ReadStates)
	typingRepo := dynamo.NewTypingStateRepo(dynamoClient, cfg.DynamoTables.TypingStates)
	triggerRepo := dynamo.NewTriggerRepo(dynamoClient, cfg.DynamoTables.Triggers)
	deviceRepo := dynamo.NewDeviceRepo(dynamoClient, cfg.DynamoTables.Devices)
	issueRepo := dynamo.NewIssueRepo(dynamoClient, cfg.DynamoTables.Issues)

	// Background workers run until the root context is cancelled on shutdown.
	rootCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	dispatchSvc := dispatch.NewService(triggerRepo, deviceRepo, push, cfg.DispatchTimeout)
	dispatchWorker := dispatch.NewWorker(dispatchSvc, triggerRepo, cfg.DispatchPollInterval, cfg.DispatchTimeout)
	dispatchWorker.Start(rootCtx)

	sweeper, err := retention.NewSweeper(triggerRepo, cfg.RetentionCron, cfg.RetentionWindow)
	if err != nil {
		log.Fatalf("retention sweeper: %v", err)
	}
	sweeper.Start(rootCtx)

	deps := &transporthttp.Deps{
		MessageRepo:   messageRepo,
		ThreadRepo:    threadRepo,
		ReadStateRepo: readStateRepo,
		TypingRepo:    typingRepo,
		TriggerRepo:   triggerRepo,
		DeviceRepo:    deviceRepo,
		IssueUpdater:  issueRepo,
		Attachments:   s3Store,
		Dispatcher:    dispatchSvc,
		JWTProvider:   jwtProvider,
	}
	if push != nil && cfg.SNSPlatformAppARN != "" {
		deps.Endpoints = push
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.AppPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: live event streams stay open for the client's
		// whole session.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancelWorkers()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
