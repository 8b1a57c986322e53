package pump

import "strings"

var abbreviations = map[string]string{
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone",
	"pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "url": "url", "ip": "ip", "zip": "zipcode", "post": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department", "cat": "category",
	"lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "dist": "district", "bal": "balance", "avg": "average",
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "is": "yesno", "use": "yesno", "flg": "flag",
	"stat": "status", "sts": "status", "typ": "type", "val": "value",
	"ord": "order", "seq": "sequence", "idx": "index",
}

// commentHints maps comment keywords to meanings, first match wins.
var commentHints = []struct {
	meaning  string
	keywords []string
}{
	{"phone", []string{"mobile", "phone"}},
	{"email", []string{"email", "mail"}},
	{"address", []string{"address"}},
	{"zipcode", []string{"zip", "postal"}},
	{"name", []string{"name"}},
	{"password", []string{"password"}},
	{"description", []string{"desc", "comment"}},
	{"date", []string{"date", "time"}},
	{"price", []string{"price", "cost", "amount"}},
	{"count", []string{"count", "qty", "quantity"}},
	{"yesno", []string{"flag", "yn"}},
	{"country", []string{"country"}},
	{"city", []string{"city"}},
}

// Meaning guesses what a column holds from its comment, then from its
// name with common abbreviations spelled out: "cust_nm" means "cust name".
func Meaning(column, comment string) string {
	c := strings.ToLower(comment)
	for _, h := range commentHints {
		for _, k := range h.keywords {
			if strings.Contains(c, k) {
				return h.meaning
			}
		}
	}

	parts := strings.Split(strings.ToLower(column), "_")
	for i, p := range parts {
		if full, ok := abbreviations[p]; ok {
			parts[i] = full
		}
	}
	return strings.Join(parts, " ")
}
