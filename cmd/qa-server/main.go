// Package main Document QA API Server
//
//	@title			Document QA API
//	@version		1.0
//	@description	An API for indexing documents and answering questions about them with page-level citations
//
//	@host		localhost:8080
//	@BasePath	/
package main

import (
	"log"

	"docqa/internal/server"
)

func main() {
	log.Println("Starting Document QA Server...")
	srv, err := server.NewServer()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
