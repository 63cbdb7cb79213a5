// Package main is the entry point for the seam server.
package main

func main() {
	Execute()
}
