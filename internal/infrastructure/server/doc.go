// Package server assembles the supervisor: bootstrapper, home resolver,
// session manager, native bridge, lifecycle coordinator and the control API,
// and runs the coordinator loop and HTTP listener together.
package server
