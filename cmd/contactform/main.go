// Command contactform is a terminal client for a contactgate server. It
// fetches the challenge, prompts for the form fields, and drives the same
// state machine the web form uses.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/SyntaxSidekick/contactgate/internal/form"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8085", "contactgate server base URL")
	source := flag.String("source", "cli", "submission source tag")
	flag.Parse()

	client, err := form.NewClient(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	f := form.New(client, *source)

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: could not reach server: %v\n", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	for _, field := range []string{"name", "email", "message"} {
		f.FocusField(field)
		fmt.Printf("%s: ", strings.ToUpper(field[:1])+field[1:])
		value, _ := reader.ReadString('\n')
		f.UpdateField(field, strings.TrimSpace(value))
		f.BlurField(field)
		if fs := f.Field(field); fs.Error != "" {
			fmt.Printf("  %s\n", fs.Error)
		}
	}

	fmt.Printf("%s ", f.CaptchaQuestion())
	answer, _ := reader.ReadString('\n')
	f.SetCaptchaAnswer(strings.TrimSpace(answer))

	f.Submit(ctx)
	fmt.Println(f.Status())
	if f.Status() != form.StatusSent {
		os.Exit(1)
	}
}
