package main

import "review-rag-be/internal/cli"

func main() {
	cli.Execute()
}
