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

type BannedCountry struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CountryName string    `gorm:"uniqueIndex;not null" json:"country_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BannedCountry) TableName() string {
	return "banned_countries"
}

type BannedIP struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	IPAddress string    `gorm:"uniqueIndex;not null;size:45" json:"ip_address"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BannedIP) TableName() string {
	return "banned_ips"
}

// CustomerIdentifierType tells whether a banned identifier is an email or a phone number
type CustomerIdentifierType string

const (
	CustomerEmail CustomerIdentifierType = "email"
	CustomerPhone CustomerIdentifierType = "phone"
)

type BannedCustomer struct {
	ID         uint                   `gorm:"primaryKey;autoIncrement" json:"id"`
	Identifier string                 `gorm:"uniqueIndex;not null" json:"identifier"`
	Type       CustomerIdentifierType `gorm:"not null;size:8" json:"type"`
	Reason     string                 `json:"reason,omitempty"`
	CreatedAt  time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

func (BannedCustomer) TableName() string {
	return "banned_customers"
}
