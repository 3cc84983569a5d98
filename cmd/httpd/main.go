// Command httpd serves a document root over HTTP/1.1, optionally with TLS,
// Basic authentication, directory listings and CGI scripts.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coreserve/httpd/app"
	"github.com/coreserve/httpd/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "httpd",
		Short:         "HTTP/1.1 origin server with static, listing and CGI handlers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			return a.Run(context.Background())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "path to config file")
	flags.String("address", "127.0.0.1:8080", "listen address (host:port)")
	flags.String("document-root", ".", "directory to serve")
	flags.Bool("allow-dir-listing", false, "render directory listings")
	flags.String("ssl-cert", "", "PEM certificate file (enables TLS with --ssl-key)")
	flags.String("ssl-key", "", "PEM private key file")
	flags.String("auth-creds", "", "Basic auth credentials, user:pass[,user:pass...]")
	flags.String("php-binary", "php-cgi", "CGI interpreter binary")
	flags.StringSlice("cgi-extensions", []string{".php"}, "extensions handled by the CGI interpreter")
	flags.String("env", "development", "environment (development or production)")
	flags.Duration("idle-timeout", 10*time.Second, "keep-alive idle timeout")
	flags.Duration("write-timeout", 30*time.Second, "response write timeout")
	flags.Duration("cgi-timeout", 30*time.Second, "CGI script execution timeout")
	flags.Duration("shutdown-grace", 5*time.Second, "drain period before force-closing connections")
	flags.Int("max-header-bytes", 8*1024, "request head size limit")
	flags.Int("max-body-bytes", 10*1024*1024, "request body size limit")
	flags.Int("max-requests-per-conn", 0, "requests served per connection, 0 for unlimited")
	flags.Int("max-connections", 0, "concurrent connection cap, 0 for unlimited")

	return cmd
}
