package cashdesk

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dtLayout = "2006.01.02 15:04:05"

type signer struct {
	hash        string
	cashierPass string
	cashdeskID  string
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// combine hashes the concatenation of the keyed sha256 and the password md5.
func combine(partA, partB string) string {
	return sha256Hex(sha256Hex(partA) + md5Hex(partB))
}

// confirm is the per-parameter confirmation carried in the query or body.
func (s signer) confirm(value string) string {
	return md5Hex(fmt.Sprintf("%s:%s", value, s.hash))
}

func (s signer) balance(dt string) string {
	return combine(
		fmt.Sprintf("hash=%s&cashierpass=%s&dt=%s", s.hash, s.cashierPass, dt),
		fmt.Sprintf("dt=%s&cashierpass=%s&cashdeskid=%s", dt, s.cashierPass, s.cashdeskID),
	)
}

func (s signer) findUser(userID string) string {
	return combine(
		fmt.Sprintf("hash=%s&userid=%s&cashdeskid=%s", s.hash, userID, s.cashdeskID),
		fmt.Sprintf("userid=%s&cashierpass=%s&hash=%s", userID, s.cashierPass, s.hash),
	)
}

func (s signer) deposit(userID, lang, summa string) string {
	return combine(
		fmt.Sprintf("hash=%s&lng=%s&UserId=%s", s.hash, lang, userID),
		fmt.Sprintf("summa=%s&cashierpass=%s&cashdeskid=%s", summa, s.cashierPass, s.cashdeskID),
	)
}

func (s signer) payout(userID, lang, code string) string {
	return combine(
		fmt.Sprintf("hash=%s&lng=%s&UserId=%s", s.hash, lang, userID),
		fmt.Sprintf("code=%s&cashierpass=%s&cashdeskid=%s", code, s.cashierPass, s.cashdeskID),
	)
}

// summa renders a deposit amount for signing: the shortest float form, with
// at least one fraction digit ("500.0", "250.5").
func summa(amount decimal.Decimal) string {
	s := strconv.FormatFloat(amount.InexactFloat64(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func timestamp(now time.Time) string {
	return now.UTC().Format(dtLayout)
}
