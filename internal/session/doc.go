// Package session tracks whether the operator holds an admin session.
//
// The Machine starts in StatusLoading and leaves it on the first CheckAuth.
// Only CheckAuth, Login and Logout change the status:
//
//	Loading --CheckAuth ok--> Authenticated
//	Loading --CheckAuth err-> Anonymous
//	*       --Login ok------> Authenticated
//	*       --Logout ok-----> Anonymous
//
// A failed Login leaves the status alone. A failed Logout leaves it alone too
// unless the machine runs with LogoutForceLocal.
//
// Consumers gate protected views on Require: ErrLoading means "render
// nothing yet", ErrAnonymous means "go to the login prompt".
package session
