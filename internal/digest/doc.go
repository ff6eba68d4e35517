// Package digest turns a recommendation report into an e-mail and delivers
// it through AWS SES.
package digest
