package main

import (
	"github.com/vibast-solutions/ms-go-course-checkout/cmd"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Execute()
}
