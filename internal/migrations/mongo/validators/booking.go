package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"room_id",
			"requester_id",
			"start_time",
			"end_time",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"room_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"purpose": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"active", "cancelled"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
