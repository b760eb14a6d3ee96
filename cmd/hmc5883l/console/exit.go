package console

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// ExitCode returns the process status for err: 0 for nil, the carried code
// for a cli.ExitCoder and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exerr cli.ExitCoder
	if errors.As(err, &exerr) {
		return exerr.ExitCode()
	}
	return 1
}
