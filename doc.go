/*
Package httpd is an HTTP/1.1 origin server built directly on TCP.

The server speaks HTTP/1.1 with persistent connections and pipelining,
serves a document root with static files and optional directory listings,
runs CGI scripts through a configurable interpreter, and can gate all
access behind Basic authentication. TLS and plaintext share the same
engine; a certificate pair on the command line switches the listener.

Quick Start

Serve the current directory:

	httpd --address 127.0.0.1:8080 --document-root .

With TLS, directory listings and PHP:

	httpd --ssl-cert cert.pem --ssl-key key.pem \
	    --allow-dir-listing --php-binary php-cgi

Modules

The repository is organized into:

  - cmd/httpd: command-line entry point
  - app: application assembly and lifecycle
  - config: settings from flags, environment and config file
  - core/wire: HTTP/1.1 request decoding and response encoding
  - core/server: listener, TLS and the per-connection state machine
  - core/dispatch: routing to static, listing and CGI handlers
  - core/pools: buffer recycling for connection reads
*/
package httpd
