/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/eventra/authserver/cmd"

func main() {
	cmd.Execute()
}
