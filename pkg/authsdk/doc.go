// Package authsdk is the Go client and wire contract of the tollgate
// authentication service.
//
// Unauthenticated calls live on SDKClient:
//
//	c := authsdk.NewSDKClient("http://localhost:8080")
//	sess, err := c.Login(ctx, "user", "123456")
//	if err != nil {
//		var se *authsdk.StandardError
//		if errors.As(err, &se) && se.Status == http.StatusForbidden {
//			// bad credentials
//		}
//	}
//
// A Session carries the token pair and refreshes the access token shortly
// before it expires:
//
//	me, err := sess.Me(ctx)
//
// The request and response types are shared with the server handlers, so
// the JSON shapes are defined once.
package authsdk
