// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package models

import (
	"time"
)

// VisitorLog records one allowed page view per browser session.
type VisitorLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	IPAddress string    `gorm:"not null;index:idx_visitor_ip" json:"ip_address"`
	Country   string    `gorm:"index:idx_visitor_country" json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	PageURL   string    `json:"page_url,omitempty"`
	VisitedAt time.Time `gorm:"not null;index:idx_visited_at" json:"visited_at"`
}

func (VisitorLog) TableName() string {
	return "visitor_logs"
}
