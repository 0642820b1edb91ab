package mylar

import (
	"bytes"
	"encoding/json"
)

// flexString decodes a JSON value that Mylar sometimes emits as a string and
// sometimes as a bare number (ids in particular).
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// UpcomingIssue is one not-yet-downloaded issue from the tracker's weekly
// pull list.
type UpcomingIssue struct {
	IssueID     flexString `json:"IssueID"`
	ComicID     flexString `json:"ComicID"`
	ComicName   string     `json:"ComicName"`
	IssueNumber flexString `json:"IssueNumber"`
	ReleaseDate string     `json:"IssueDate"`
	Status      string     `json:"Status"`
}
