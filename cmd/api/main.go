package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"tukarin/internal/adapter/api"
	"tukarin/internal/adapter/api/handler"
	apimiddleware "tukarin/internal/adapter/api/middleware"
	"tukarin/internal/adapter/api/router"
	"tukarin/internal/adapter/repository"
	"tukarin/internal/infrastructure/firebase"
	"tukarin/internal/infrastructure/storage"
	"tukarin/internal/infrastructure/websocket"
	"tukarin/internal/usecase"
	"tukarin/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opt option.ClientOption
	credentialsPath := ""

	// Service account JSON in the environment takes precedence (production);
	// a file path is the local development fallback.
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		credentialsPath = os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if credentialsPath == "" {
			credentialsPath = "./serviceAccountKey.json"
		}

		if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", credentialsPath)
		}

		log.Printf("Using Firebase service account from file: %s", credentialsPath)
		opt = option.WithCredentialsFile(credentialsPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewCloudStorageClient(
		ctx,
		cfg.StorageBucket,
		cfg.StorageBaseURL,
		credentialsPath,
	)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	chatRoomRepo := repository.NewFirestoreChatRoomRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	listingRepo := repository.NewFirestoreListingRepository(firestoreClient)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	chatUseCase := usecase.NewChatUseCase(chatRoomRepo, userRepo, listingRepo, storageClient, wsManager)

	stockNotifier := usecase.NewStockNotifier(listingRepo, wsManager, cfg.StockPollInterval)
	stockNotifier.Start(ctx)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)
	wsAuthClient := firebase.NewAuthClient(authClient)

	chatHandler := handler.NewChatHandler(chatUseCase)
	uploadHandler := handler.NewUploadHandler(chatUseCase)
	wsHandler := handler.NewWebSocketHandler(wsManager, wsAuthClient, chatUseCase, chatRoomRepo, userRepo)
	healthHandler := handler.NewHealthHandler(wsAuthClient)

	router.Setup(e, authMiddleware, chatHandler, uploadHandler, wsHandler, healthHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
