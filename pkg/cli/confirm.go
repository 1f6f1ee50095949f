package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Confirm asks the user on stdin to type "yes" to continue. If skip is true, it returns
// true without reading anything.
func Confirm(prompt string, skip bool) (bool, error) {
	return confirm(os.Stdin, os.Stdout, prompt, skip)
}

func confirm(in io.Reader, out io.Writer, prompt string, skip bool) (bool, error) {
	fmt.Fprintf(out, "%s (yes/no) ", prompt)

	if skip {
		log.Infof("Automatically answering yes because skip is set to true")
		return true, nil
	}

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || response == "") {
		log.Warnf("Got error reading response, not continuing: %+v", err)
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes", "y":
		return true, nil
	default:
		log.Infof("Not continuing")
		return false, nil
	}
}
