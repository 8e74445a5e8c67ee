// Package egress discovers the public IP address a client presents to the
// internet by querying an IP-echo endpoint through that client.
package egress
