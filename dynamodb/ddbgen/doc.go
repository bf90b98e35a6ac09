// Package ddbgen generates Go types for models declared in a schema YAML file.
//
// # Usage
//
// Keep the model declarations next to the package that uses them and add a
// go:generate directive:
//
//	//go:generate ddb gen --schema models_dynamodb.yaml
//
// For every model the generator writes a struct with dynamodbav tags, a
// schema.Model variable to pass to adapter.Define, and a constructor for the
// typed adapter handle:
//
//	if err := a.Define(ctx, models.UserModel); err != nil {
//	    return err
//	}
//	u, err := models.Users(a).Find(ctx, adapter.Key{Hash: "eu", Range: "1"})
package ddbgen
