package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
