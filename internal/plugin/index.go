// Package plugin provides JavaScript interceptors for the Data Client.
//
// Plugins are JavaScript files loaded from a directory at startup.
// Each plugin must define:
//   - A @phase directive, either request or response
//   - An intercept(msg) function
//
// Request plugins receive {method, url, headers} and response plugins
// receive {status, headers, body}. Returning an object applies its fields;
// returning nothing leaves the message unchanged.
//
// Example plugin:
//
//	// @phase request
//	function intercept(msg) {
//	    msg.headers["X-Api-Key"] = "demo";
//	    if (msg.url.indexOf("/api/movies/search") >= 0) {
//	        console.log("search", msg.url);
//	    }
//	    return msg;
//	}
package plugin
